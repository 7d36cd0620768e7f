// Package tenant implements the organizational hierarchy (C1): units
// arranged company -> organization -> team -> project, scoped by tenant.
package tenant

import "time"

// Kind is an organizational unit's place in the four-level hierarchy.
type Kind string

const (
	Company      Kind = "company"
	Organization Kind = "organization"
	Team         Kind = "team"
	Project      Kind = "project"
)

// parentKind reports the kind a unit of this kind's parent must have, or ""
// if this kind has no parent (Company is the root).
func parentKind(k Kind) Kind {
	switch k {
	case Organization:
		return Company
	case Team:
		return Organization
	case Project:
		return Team
	default:
		return ""
	}
}

// Unit is an Organizational Unit (spec.md §3).
type Unit struct {
	ID        string
	TenantID  string
	Name      string
	Kind      Kind
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Context is the Tenant Context every operation in this module carries
// (spec.md §3): {tenant id, principal id, principal kind}.
type Context struct {
	TenantID      string
	PrincipalID   string
	PrincipalKind string // user | agent | system
}
