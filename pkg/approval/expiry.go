package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
	"github.com/kikokikok/aeterna-sub000/pkg/metapolicy"
)

// ExpireAndEscalate runs one pass of the periodic expiry/escalation job
// (spec.md §4.6, §4.4). Only pending or escalated requests whose expires_at
// has passed are considered: such a request advances to its layer's next
// escalation tier once the cumulative tier timeout since creation has
// elapsed, and resolves per the layer's escalation fallback once no tier
// remains. A request whose expires_at is still in the future is not
// escalated, however long it has been pending. Run by the scheduler on a
// recurring job, mirroring the cumulative-timeout shape of
// wisbric-nightowl/pkg/escalation/engine.go's processAlert.
func (s *Service) ExpireAndEscalate(ctx context.Context, now time.Time) (expired, escalated int, err error) {
	requests, err := s.store.PendingPastExpiry(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("listing past-expiry requests: %w", err)
	}

	for _, req := range requests {
		policy, perr := s.effectivePolicy(ctx, req)
		if perr != nil {
			return expired, escalated, fmt.Errorf("loading policy for request %s: %w", req.ID, perr)
		}

		advanced, terminal, aerr := s.advance(ctx, req, policy, now)
		if aerr != nil {
			return expired, escalated, fmt.Errorf("advancing request %s: %w", req.ID, aerr)
		}
		if advanced {
			escalated++
		}
		if terminal {
			expired++
		}
	}
	return expired, escalated, nil
}

func (s *Service) effectivePolicy(ctx context.Context, req Request) (metapolicy.Policy, error) {
	if s.policies == nil {
		return metapolicy.Policy{EscalationConfig: metapolicy.EscalationConfig{FallbackAction: metapolicy.FallbackExpireRequest}}, nil
	}
	layer, scopeID := scopeUnit(req.Scope)
	return s.policies.EffectivePolicyForLayer(ctx, req.TenantID, layer, scopeID)
}

// scopeUnit resolves the most specific scope id set on req.Scope, and the
// Layer it corresponds to (project > team > org > company).
func scopeUnit(sc Scope) (metapolicy.Layer, *string) {
	switch {
	case sc.ProjectID != nil:
		return metapolicy.LayerProject, sc.ProjectID
	case sc.TeamID != nil:
		return metapolicy.LayerTeam, sc.TeamID
	case sc.OrgID != nil:
		return metapolicy.LayerOrganization, sc.OrgID
	default:
		return metapolicy.LayerCompany, sc.CompanyID
	}
}

// advance either moves req into its next escalation tier (if one remains
// and enough cumulative time has elapsed) or resolves it terminally per the
// layer's escalation fallback. advanced reports whether a tier fired;
// terminal reports whether the request left the pending/escalated states.
func (s *Service) advance(ctx context.Context, req Request, policy metapolicy.Policy, now time.Time) (advanced, terminal bool, err error) {
	cfg := policy.EscalationConfig
	elapsed := now.Sub(req.CreatedAt)

	if cfg.Enabled && req.EscalationTier < len(cfg.Tiers) {
		cumulative := time.Duration(cfg.InitialTimeoutHours) * time.Hour
		for i := 0; i <= req.EscalationTier && i < len(cfg.Tiers); i++ {
			cumulative += time.Duration(cfg.Tiers[i].TimeoutHours) * time.Hour
		}
		if elapsed >= cumulative {
			req.EscalationTier++
			req.Status = StatusEscalated
			if err := s.store.UpdateTally(ctx, req); err != nil {
				return false, false, fmt.Errorf("updating escalation tier: %w", err)
			}
			if s.audit != nil {
				s.audit.Log(govern.AuditEntry{
					TenantID: req.TenantID, Action: "approval.escalate",
					TargetKind: "approval_request", TargetID: req.ID,
				})
			}
			return true, false, nil
		}
		return false, false, nil
	}

	if err := s.resolveByFallback(ctx, req, cfg.FallbackAction, now); err != nil {
		return false, false, err
	}
	switch cfg.FallbackAction {
	case metapolicy.FallbackWaitIndefinitely, metapolicy.FallbackNotifyEmergency:
		return false, false, nil
	}
	return false, true, nil
}

func (s *Service) resolveByFallback(ctx context.Context, req Request, fallback metapolicy.EscalationFallback, now time.Time) error {
	switch fallback {
	case metapolicy.FallbackWaitIndefinitely:
		return nil
	case metapolicy.FallbackAutoApprove:
		if !req.Risk.AtMost(metapolicy.RiskLow) {
			return s.terminalExpire(ctx, req, now)
		}
		req.Status = StatusApproved
		req.ResolvedAt = &now
		if err := s.store.UpdateTally(ctx, req); err != nil {
			return fmt.Errorf("auto-approving request: %w", err)
		}
		if s.audit != nil {
			s.audit.Log(govern.AuditEntry{
				TenantID: req.TenantID, Action: "approval.auto_approve",
				TargetKind: "approval_request", TargetID: req.ID,
			})
		}
		return nil
	case metapolicy.FallbackNotifyEmergency:
		req.Status = StatusEscalated
		if err := s.store.UpdateTally(ctx, req); err != nil {
			return fmt.Errorf("notifying emergency: %w", err)
		}
		if s.audit != nil {
			s.audit.Log(govern.AuditEntry{
				TenantID: req.TenantID, Action: "approval.notify_emergency",
				TargetKind: "approval_request", TargetID: req.ID,
			})
		}
		return nil
	default: // FallbackExpireRequest and unset
		return s.terminalExpire(ctx, req, now)
	}
}

func (s *Service) terminalExpire(ctx context.Context, req Request, now time.Time) error {
	req.Status = StatusExpired
	req.ResolvedAt = &now
	if err := s.store.UpdateTally(ctx, req); err != nil {
		return fmt.Errorf("expiring request: %w", err)
	}
	if s.audit != nil {
		s.audit.Log(govern.AuditEntry{
			TenantID: req.TenantID, Action: "approval.expire",
			TargetKind: "approval_request", TargetID: req.ID,
		})
	}
	return nil
}
