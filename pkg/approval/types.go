// Package approval implements the Approval Engine (C6): request lifecycle,
// decision tally, approval modes, expiry, and escalation. Generalized from
// the alert-escalation-tier shape in wisbric-nightowl/pkg/escalation to
// approval requests (spec.md §4.6).
package approval

import (
	"encoding/json"
	"time"

	"github.com/kikokikok/aeterna-sub000/pkg/metapolicy"
)

// Kind is the category of thing an Approval Request governs.
type Kind string

const (
	KindPolicy    Kind = "policy"
	KindKnowledge Kind = "knowledge"
	KindMemory    Kind = "memory"
	KindRole      Kind = "role"
	KindConfig    Kind = "config"
)

// Status is a request's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	// StatusEscalated marks a request that has moved into an escalation
	// tier or whose escalation fallback was notify_emergency; it remains
	// otherwise pending.
	StatusEscalated Status = "escalated"
)

// Mode is how a request's required_approvals is determined and enforced.
type Mode string

const (
	ModeSingle    Mode = "single"
	ModeQuorum    Mode = "quorum"
	ModeUnanimous Mode = "unanimous"
)

// Verdict is a single approver's decision.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
	VerdictAbstain Verdict = "abstain"
)

// Scope locates a request within the organizational hierarchy; any of its
// ids may be set, and the most specific set id decides the layer used for
// policy lookup (spec.md §4.6 "scope filters are exact").
type Scope struct {
	CompanyID *string
	OrgID     *string
	TeamID    *string
	ProjectID *string
}

// Request is an Approval Request (spec.md §3).
type Request struct {
	ID                string
	TenantID          string
	Number            int
	Kind              Kind
	Target            string
	Scope             Scope
	Title             string
	Description       string
	Payload           json.RawMessage
	Risk              metapolicy.RiskLevel
	Requestor         string
	Mode              Mode
	RequiredApprovals int
	CurrentApprovals  int
	Status            Status
	EscalationTier    int
	CreatedAt         time.Time
	ExpiresAt         time.Time
	ResolvedAt        *time.Time
	ResolutionReason  *string
	Applied           bool
	AppliedBy         *string
	AppliedAt         *time.Time
}

// Decision is one approver's recorded verdict on a Request.
type Decision struct {
	ID        string
	RequestID string
	Approver  string
	Verdict   Verdict
	Comment   *string
	CreatedAt time.Time
}

// ListFilters narrows ListPendingRequests (spec.md §4.6: kind, scope,
// requestor, limit — scope filters are exact, never inherited).
type ListFilters struct {
	Kind      *Kind
	Scope     Scope
	Requestor *string
	Limit     int
}
