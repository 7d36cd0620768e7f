package rpcserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kikokikok/aeterna-sub000/internal/httpserver"
	"github.com/kikokikok/aeterna-sub000/pkg/confirmation"
)

func (s *Server) mountConfirmations(r chi.Router) {
	r.Route("/confirmations", func(r chi.Router) {
		r.Post("/", s.handleCreateConfirmation)
		r.Get("/pending", s.handlePendingConfirmations)
		r.Get("/{id}", s.handleGetConfirmation)
		r.Post("/{id}/resolve", s.handleResolveConfirmation)
	})
}

type createConfirmationRequest struct {
	AgentID             string              `json:"agent_id"`
	Action              string              `json:"action"`
	Description         string              `json:"description"`
	TargetKind          string              `json:"target_kind"`
	TargetID            *string             `json:"target_id,omitempty"`
	Risk                string              `json:"risk"`
	Reason              confirmation.Reason `json:"reason"`
	AgentContext        json.RawMessage     `json:"agent_context,omitempty"`
	AuthorizedApprovers []string            `json:"authorized_approvers"`
	TimeoutHours        int                 `json:"timeout_hours"`
}

func (s *Server) handleCreateConfirmation(w http.ResponseWriter, r *http.Request) {
	if s.engines.Confirmation == nil {
		unavailable(w, "confirmation")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var body createConfirmationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	req, err := s.engines.Confirmation.Create(r.Context(), confirmation.CreateParams{
		TenantID:            tc.TenantID,
		AgentID:             body.AgentID,
		Action:              body.Action,
		Description:         body.Description,
		TargetKind:          body.TargetKind,
		TargetID:            body.TargetID,
		Risk:                body.Risk,
		Reason:              body.Reason,
		AgentContext:        body.AgentContext,
		AuthorizedApprovers: body.AuthorizedApprovers,
		TimeoutHours:        body.TimeoutHours,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, req)
}

func (s *Server) handlePendingConfirmations(w http.ResponseWriter, r *http.Request) {
	if s.engines.Confirmation == nil {
		unavailable(w, "confirmation")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	approver := r.URL.Query().Get("approver")
	if approver == "" {
		approver = tc.PrincipalID
	}
	reqs, err := s.engines.Confirmation.PendingForApprover(r.Context(), tc.TenantID, approver)
	if err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, reqs)
}

func (s *Server) handleGetConfirmation(w http.ResponseWriter, r *http.Request) {
	if s.engines.Confirmation == nil {
		unavailable(w, "confirmation")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	req, err := s.engines.Confirmation.Get(r.Context(), tc.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, req)
}

type resolveConfirmationRequest struct {
	Approved bool    `json:"approved"`
	Comment  *string `json:"comment,omitempty"`
}

func (s *Server) handleResolveConfirmation(w http.ResponseWriter, r *http.Request) {
	if s.engines.Confirmation == nil {
		unavailable(w, "confirmation")
		return
	}
	tc, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var body resolveConfirmationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	resolved, err := s.engines.Confirmation.Resolve(r.Context(), tc.TenantID, chi.URLParam(r, "id"), body.Approved, tc.PrincipalID, body.Comment)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !resolved {
		httpserver.RespondError(w, http.StatusConflict, "not_pending", "request is not pending")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"resolved": true})
}
