// Package govconfig persists the per-tenant approval defaults the CLI's
// `govern configure`/`govern status` commands read and write (spec.md §6).
// It is deliberately separate from pkg/metapolicy: metapolicy resolves
// layered authorization policy for a given action, while this package holds
// the single human-operator-facing default a tenant's new approval
// requests fall back to when a caller doesn't specify one explicitly.
package govconfig

import (
	"fmt"

	"github.com/kikokikok/aeterna-sub000/pkg/approval"
)

// Config is a tenant's default approval configuration.
type Config struct {
	TenantID          string
	ApprovalMode      approval.Mode
	MinApprovers      int
	TimeoutHours      int
	AutoApprove       bool
	EscalationContact string
}

// Template is a named, pre-defined Config profile (spec.md §6).
type Template struct {
	Name         string
	ApprovalMode approval.Mode
	MinApprovers int
	TimeoutHours int
	AutoApprove  bool
}

// Templates lists the three governance profiles `govern configure
// --list-templates` prints and `--template` applies.
var Templates = []Template{
	{Name: "standard", ApprovalMode: approval.ModeQuorum, MinApprovers: 2, TimeoutHours: 72, AutoApprove: false},
	{Name: "strict", ApprovalMode: approval.ModeUnanimous, MinApprovers: 3, TimeoutHours: 24, AutoApprove: false},
	{Name: "permissive", ApprovalMode: approval.ModeSingle, MinApprovers: 1, TimeoutHours: 168, AutoApprove: true},
}

// FindTemplate looks up a template by name.
func FindTemplate(name string) (Template, error) {
	for _, t := range Templates {
		if t.Name == name {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("govconfig: unknown template %q", name)
}

// Default returns the "standard" template's profile for a tenant that has
// never been configured.
func Default(tenantID string) Config {
	std, _ := FindTemplate("standard")
	return Config{
		TenantID:     tenantID,
		ApprovalMode: std.ApprovalMode,
		MinApprovers: std.MinApprovers,
		TimeoutHours: std.TimeoutHours,
		AutoApprove:  std.AutoApprove,
	}
}
