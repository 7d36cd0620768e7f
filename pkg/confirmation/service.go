package confirmation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
)

// Service implements the C7 operations: create_confirmation_request,
// resolve_confirmation, expire_old_requests, and approver-scoped lookup.
type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// CreateParams is the input to Create (spec.md §4.7).
type CreateParams struct {
	TenantID            string
	AgentID             string
	Action              string
	Description         string
	TargetKind          string
	TargetID            *string
	Risk                string
	Reason              Reason
	AgentContext        json.RawMessage
	AuthorizedApprovers []string
	TimeoutHours        int
}

// Create persists a new pending confirmation request.
func (s *Service) Create(ctx context.Context, p CreateParams) (Request, error) {
	if len(p.AuthorizedApprovers) == 0 {
		return Request{}, govern.New(govern.KindMissingReason, "confirmation request requires at least one authorized approver")
	}
	now := time.Now().UTC()
	req := Request{
		ID:                  uuid.NewString(),
		TenantID:            p.TenantID,
		AgentID:             p.AgentID,
		Action:              p.Action,
		Description:         p.Description,
		TargetKind:          p.TargetKind,
		TargetID:            p.TargetID,
		Risk:                p.Risk,
		Reason:              p.Reason,
		AgentContext:        p.AgentContext,
		AuthorizedApprovers: p.AuthorizedApprovers,
		Status:              StatusPending,
		CreatedAt:           now,
		ExpiresAt:           now.Add(time.Duration(p.TimeoutHours) * time.Hour),
	}
	if err := s.store.Create(ctx, req); err != nil {
		return Request{}, fmt.Errorf("creating confirmation request: %w", err)
	}
	return req, nil
}

// Resolve approves or denies a pending request. It is a no-op (ok=false) if
// the request is not currently pending.
func (s *Service) Resolve(ctx context.Context, tenantID, id string, approved bool, by string, comment *string) (ok bool, err error) {
	status := StatusDenied
	if approved {
		status = StatusApproved
	}
	return s.store.Resolve(ctx, tenantID, id, status, by, comment, time.Now().UTC())
}

// ExpireOldRequests transitions every pending, past-expiry request to
// expired and returns the count affected.
func (s *Service) ExpireOldRequests(ctx context.Context) (int64, error) {
	return s.store.ExpireOldRequests(ctx, time.Now().UTC())
}

// PendingForApprover returns every pending, non-expired request in tenantID
// naming approver among its authorized_approvers.
func (s *Service) PendingForApprover(ctx context.Context, tenantID, approver string) ([]Request, error) {
	return s.store.PendingForApprover(ctx, tenantID, approver, time.Now().UTC())
}

// Get returns a single confirmation request by id.
func (s *Service) Get(ctx context.Context, tenantID, id string) (Request, error) {
	return s.store.Get(ctx, tenantID, id)
}
