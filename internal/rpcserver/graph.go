package rpcserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kikokikok/aeterna-sub000/internal/httpserver"
	"github.com/kikokikok/aeterna-sub000/pkg/graph"
)

func (s *Server) mountGraph(r chi.Router) {
	r.Route("/graph", func(r chi.Router) {
		r.Post("/nodes", s.handleAddNode)
		r.Get("/nodes", s.handleSearchNodes)
		r.Get("/nodes/{id}/neighbors", s.handleGetNeighbors)
		r.Delete("/nodes/{id}", s.handleDeleteNode)
		r.Post("/edges", s.handleAddEdge)
		r.Get("/stats", s.handleGraphStats)
	})
}

type addNodeRequest struct {
	ID             string          `json:"id"`
	Label          string          `json:"label"`
	Properties     json.RawMessage `json:"properties,omitempty"`
	SourceMemoryID *string         `json:"source_memory_id,omitempty"`
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	if s.engines.Graph == nil {
		unavailable(w, "graph")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var body addNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	n := graph.Node{
		ID:             body.ID,
		Label:          body.Label,
		Properties:     body.Properties,
		SourceMemoryID: body.SourceMemoryID,
	}
	if err := s.engines.Graph.AddNode(r.Context(), graph.Ctx(tc), n); err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, n)
}

type addEdgeRequest struct {
	ID         string          `json:"id"`
	SourceID   string          `json:"source_id"`
	TargetID   string          `json:"target_id"`
	Relation   string          `json:"relation"`
	Properties json.RawMessage `json:"properties,omitempty"`
	Weight     float64         `json:"weight"`
}

func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	if s.engines.Graph == nil {
		unavailable(w, "graph")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var body addEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	e := graph.Edge{
		ID:         body.ID,
		SourceID:   body.SourceID,
		TargetID:   body.TargetID,
		Relation:   body.Relation,
		Properties: body.Properties,
		Weight:     body.Weight,
	}
	if err := s.engines.Graph.AddEdge(r.Context(), graph.Ctx(tc), e); err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	if s.engines.Graph == nil {
		unavailable(w, "graph")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if err := s.engines.Graph.SoftDeleteNode(r.Context(), graph.Ctx(tc), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleSearchNodes(w http.ResponseWriter, r *http.Request) {
	if s.engines.Graph == nil {
		unavailable(w, "graph")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	limit := 50
	if lim := r.URL.Query().Get("limit"); lim != "" {
		if n, err := strconv.Atoi(lim); err == nil {
			limit = n
		}
	}
	nodes, err := s.engines.Graph.SearchNodes(r.Context(), graph.Ctx(tc), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, nodes)
}

func (s *Server) handleGetNeighbors(w http.ResponseWriter, r *http.Request) {
	if s.engines.Graph == nil {
		unavailable(w, "graph")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	pairs, err := s.engines.Graph.GetNeighbors(r.Context(), graph.Ctx(tc), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, pairs)
}

func (s *Server) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	if s.engines.Graph == nil {
		unavailable(w, "graph")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	stats, err := s.engines.Graph.GetStats(r.Context(), graph.Ctx(tc))
	if err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, stats)
}
