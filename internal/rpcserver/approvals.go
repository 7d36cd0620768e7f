package rpcserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kikokikok/aeterna-sub000/internal/httpserver"
	"github.com/kikokikok/aeterna-sub000/pkg/approval"
	"github.com/kikokikok/aeterna-sub000/pkg/metapolicy"
)

func (s *Server) mountApprovals(r chi.Router) {
	r.Route("/approvals", func(r chi.Router) {
		r.Post("/", s.handleCreateApproval)
		r.Get("/", s.handleListApprovals)
		r.Get("/{id}", s.handleGetApproval)
		r.Post("/{id}/decisions", s.handleAddDecision)
		r.Post("/{id}/apply", s.handleMarkApplied)
	})
}

type createApprovalRequest struct {
	Kind                approval.Kind        `json:"kind"`
	Target              string               `json:"target"`
	Scope               approval.Scope       `json:"scope"`
	UnitID              string               `json:"unit_id"`
	Title               string               `json:"title"`
	Description         string               `json:"description"`
	Payload             json.RawMessage      `json:"payload,omitempty"`
	Risk                metapolicy.RiskLevel `json:"risk"`
	Requestor           string               `json:"requestor"`
	Mode                approval.Mode        `json:"mode"`
	RequiredApprovals   int                  `json:"required_approvals,omitempty"`
	AuthorizedApprovers []string             `json:"authorized_approvers,omitempty"`
	TimeoutHours        int                  `json:"timeout_hours"`
}

func (s *Server) handleCreateApproval(w http.ResponseWriter, r *http.Request) {
	if s.engines.Approvals == nil {
		unavailable(w, "approval")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var body createApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	req, err := s.engines.Approvals.Create(r.Context(), approval.CreateParams{
		TenantID:            tc.TenantID,
		Kind:                body.Kind,
		Target:              body.Target,
		Scope:               body.Scope,
		UnitID:              body.UnitID,
		Title:               body.Title,
		Description:         body.Description,
		Payload:             body.Payload,
		Risk:                body.Risk,
		Requestor:           body.Requestor,
		Mode:                body.Mode,
		RequiredApprovals:   body.RequiredApprovals,
		AuthorizedApprovers: body.AuthorizedApprovers,
		TimeoutHours:        body.TimeoutHours,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, req)
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	if s.engines.Approvals == nil {
		unavailable(w, "approval")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var filters approval.ListFilters
	if k := r.URL.Query().Get("kind"); k != "" {
		kind := approval.Kind(k)
		filters.Kind = &kind
	}
	if req := r.URL.Query().Get("requestor"); req != "" {
		filters.Requestor = &req
	}
	if lim := r.URL.Query().Get("limit"); lim != "" {
		if n, err := strconv.Atoi(lim); err == nil {
			filters.Limit = n
		}
	}
	reqs, err := s.engines.Approvals.ListPendingRequests(r.Context(), tc.TenantID, filters)
	if err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, reqs)
}

func (s *Server) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	if s.engines.Approvals == nil {
		unavailable(w, "approval")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	req, err := s.engines.Approvals.Get(r.Context(), tc.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, req)
}

type addDecisionRequest struct {
	Approver string           `json:"approver"`
	Verdict  approval.Verdict `json:"verdict"`
	Comment  *string          `json:"comment,omitempty"`
}

func (s *Server) handleAddDecision(w http.ResponseWriter, r *http.Request) {
	if s.engines.Approvals == nil {
		unavailable(w, "approval")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var body addDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	req, err := s.engines.Approvals.AddDecision(r.Context(), tc.TenantID, chi.URLParam(r, "id"), body.Approver, body.Verdict, body.Comment)
	if err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, req)
}

func (s *Server) handleMarkApplied(w http.ResponseWriter, r *http.Request) {
	if s.engines.Approvals == nil {
		unavailable(w, "approval")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	ok2, err := s.engines.Approvals.MarkApplied(r.Context(), tc.TenantID, chi.URLParam(r, "id"), tc.PrincipalID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !ok2 {
		httpserver.RespondError(w, http.StatusConflict, "not_approved", "request is not in approved status")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"applied": true})
}
