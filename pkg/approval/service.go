package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
	"github.com/kikokikok/aeterna-sub000/internal/store"
	"github.com/kikokikok/aeterna-sub000/pkg/metapolicy"
)

// Service implements the C6 operations: create, decide, list, apply, and
// (in expiry.go) the periodic expiry/escalation pass.
type Service struct {
	db       *store.Store
	store    *Store
	policies *metapolicy.Service
	audit    *govern.AuditSink
}

func NewService(db *store.Store, policies *metapolicy.Service, audit *govern.AuditSink) *Service {
	return &Service{db: db, store: NewStore(db.DB), policies: policies, audit: audit}
}

// CreateParams is the input to Create (spec.md §4.6).
type CreateParams struct {
	TenantID    string
	Kind        Kind
	Target      string
	Scope       Scope
	UnitID      string // unit the request is scoped to, for policy lookup
	Title       string
	Description string
	Payload     json.RawMessage
	Risk        metapolicy.RiskLevel
	Requestor   string
	Mode        Mode
	// RequiredApprovals is used directly for quorum mode when non-zero;
	// otherwise a fixed default of 2 (defaultQuorum) applies. Ignored for
	// single (always 1) and unanimous (frozen approver count).
	RequiredApprovals int
	// AuthorizedApprovers freezes the unanimous-mode denominator at
	// creation time (spec.md §4.6); unused by single/quorum.
	AuthorizedApprovers []string
	TimeoutHours        int
}

const defaultQuorum = 2

// Create allocates a monotonic human-readable number, computes
// required_approvals per mode, and persists a new pending request.
func (s *Service) Create(ctx context.Context, p CreateParams) (Request, error) {
	var required int
	switch p.Mode {
	case ModeSingle:
		required = 1
	case ModeQuorum:
		required = p.RequiredApprovals
		if required <= 0 {
			required = defaultQuorum
		}
	case ModeUnanimous:
		required = len(p.AuthorizedApprovers)
		if required == 0 {
			required = 1
		}
	default:
		return Request{}, fmt.Errorf("unknown approval mode %q", p.Mode)
	}

	timeoutHours := p.TimeoutHours
	if timeoutHours == 0 {
		timeoutHours = 72
	}

	now := time.Now().UTC()
	req := Request{
		ID:                uuid.NewString(),
		TenantID:          p.TenantID,
		Kind:              p.Kind,
		Target:            p.Target,
		Scope:             p.Scope,
		Title:             p.Title,
		Description:       p.Description,
		Payload:           p.Payload,
		Risk:              p.Risk,
		Requestor:         p.Requestor,
		Mode:              p.Mode,
		RequiredApprovals: required,
		CurrentApprovals:  0,
		Status:            StatusPending,
		EscalationTier:    0,
		CreatedAt:         now,
		ExpiresAt:         now.Add(time.Duration(timeoutHours) * time.Hour),
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		txStore := NewStore(tx)
		n, err := txStore.NextNumber(ctx, p.TenantID)
		if err != nil {
			return fmt.Errorf("allocating request number: %w", err)
		}
		req.Number = n
		return txStore.Create(ctx, req)
	})
	if err != nil {
		return Request{}, err
	}

	if s.audit != nil {
		s.audit.Log(govern.AuditEntry{
			TenantID: p.TenantID, ActorID: p.Requestor, Action: "approval.create",
			TargetKind: "approval_request", TargetID: req.ID,
		})
	}
	return req, nil
}

// AddDecision records approver's verdict and recomputes the request's
// tally. A second decision from the same approver returns
// govern.KindDuplicateDecision. Reject always requires a reason.
func (s *Service) AddDecision(ctx context.Context, tenantID, requestID, approver string, verdict Verdict, comment *string) (Request, error) {
	if verdict == VerdictReject && (comment == nil || *comment == "") {
		return Request{}, govern.New(govern.KindMissingReason, "rejecting approval request %s requires a reason", requestID)
	}

	var updated Request
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		txStore := NewStore(tx)
		req, err := txStore.Get(ctx, tenantID, requestID)
		if err != nil {
			return fmt.Errorf("loading request: %w", err)
		}
		if req.Status != StatusPending && req.Status != StatusEscalated {
			return govern.New(govern.KindAuthorizationDenied, "request %s is not pending (status=%s)", requestID, req.Status)
		}

		decision := Decision{
			ID: uuid.NewString(), RequestID: requestID, Approver: approver,
			Verdict: verdict, Comment: comment, CreatedAt: time.Now().UTC(),
		}
		if err := txStore.InsertDecision(ctx, decision); err != nil {
			if IsDuplicateDecision(err) {
				return govern.New(govern.KindDuplicateDecision, "approver %s has already decided on request %s", approver, requestID)
			}
			return fmt.Errorf("inserting decision: %w", err)
		}

		decisions, err := txStore.Decisions(ctx, requestID)
		if err != nil {
			return fmt.Errorf("loading decisions: %w", err)
		}

		var approves, rejects int
		for _, d := range decisions {
			switch d.Verdict {
			case VerdictApprove:
				approves++
			case VerdictReject:
				rejects++
			}
		}
		req.CurrentApprovals = approves

		now := time.Now().UTC()
		switch {
		case rejects > 0:
			req.Status = StatusRejected
			req.ResolvedAt = &now
			req.ResolutionReason = comment
		case approves >= req.RequiredApprovals:
			req.Status = StatusApproved
			req.ResolvedAt = &now
		default:
			req.Status = StatusPending
		}

		if err := txStore.UpdateTally(ctx, req); err != nil {
			return fmt.Errorf("updating tally: %w", err)
		}
		updated = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	if s.audit != nil {
		s.audit.Log(govern.AuditEntry{
			TenantID: tenantID, ActorID: approver, Action: "approval." + string(verdict),
			TargetKind: "approval_request", TargetID: requestID,
		})
	}
	return updated, nil
}

// Get returns a single request by id.
func (s *Service) Get(ctx context.Context, tenantID, id string) (Request, error) {
	return s.store.Get(ctx, tenantID, id)
}

// ListPendingRequests returns pending requests matching filters
// (spec.md §4.6/§6: kind, scope, requestor, limit; scope filters are exact).
func (s *Service) ListPendingRequests(ctx context.Context, tenantID string, filters ListFilters) ([]Request, error) {
	return s.store.ListPending(ctx, tenantID, filters)
}

// MarkApplied records that an approved request's effect has been applied.
// It fails if the request is not in status=approved.
func (s *Service) MarkApplied(ctx context.Context, tenantID, id, appliedBy string) (bool, error) {
	return s.store.MarkApplied(ctx, tenantID, id, appliedBy, time.Now().UTC())
}

// Decisions returns every decision recorded against requestID.
func (s *Service) Decisions(ctx context.Context, requestID string) ([]Decision, error) {
	return s.store.Decisions(ctx, requestID)
}

// CountByStatusSince counts tenantID's requests in status since the given
// time (spec.md §6 `govern status`'s approved_today/rejected_today).
func (s *Service) CountByStatusSince(ctx context.Context, tenantID string, status Status, since time.Time) (int, error) {
	return s.store.CountByStatusSince(ctx, tenantID, status, since)
}
