// Package confirmation implements the Human-Confirmation Queue (C7): a
// gated path for agent-requested actions that a human must approve or deny
// before the agent may proceed. Adapted from the personal-access-token
// persistence shape in wisbric-nightowl/pkg/pat to confirmation semantics.
package confirmation

import (
	"encoding/json"
	"time"
)

// Reason is why an action required human confirmation.
type Reason string

const (
	ReasonPolicyRequired        Reason = "policy-required"
	ReasonHighRisk               Reason = "high-risk"
	ReasonDelegationDepthWarning Reason = "delegation-depth-warning"
	ReasonRateLimitWarning       Reason = "rate-limit-warning"
	ReasonCrossScope             Reason = "cross-scope"
	ReasonFirstTime              Reason = "first-time"
	ReasonAgentRequested         Reason = "agent-requested"
)

// Status is a confirmation request's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Request is a Human Confirmation Request (spec.md §4.7/§3).
type Request struct {
	ID                 string
	TenantID           string
	AgentID            string
	Action             string
	Description        string
	TargetKind         string
	TargetID           *string
	Risk               string
	Reason             Reason
	AgentContext       json.RawMessage
	AuthorizedApprovers []string
	Status             Status
	ResolvedBy         *string
	ResolutionComment  *string
	CreatedAt          time.Time
	ExpiresAt          time.Time
	ResolvedAt         *time.Time
}

func (r Request) isPendingAndUnexpired(now time.Time) bool {
	return r.Status == StatusPending && r.ExpiresAt.After(now)
}

func (r Request) authorizes(approver string) bool {
	for _, a := range r.AuthorizedApprovers {
		if a == approver {
			return true
		}
	}
	return false
}
