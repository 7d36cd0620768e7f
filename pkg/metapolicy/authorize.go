package metapolicy

import "fmt"

// CheckAuthorization implements spec.md §4.5's decision function: a role
// gate, a risk gate, a human-confirmation flag, and (for agent principals)
// autonomy, delegation-depth, and per-action-agent-autonomy checks.
func (p Policy) CheckAuthorization(principal PrincipalKind, role RoleLevel, action ActionType, risk RiskLevel, delegationDepth *int) Result {
	var warnings []string
	requiresConfirmation := false

	perm := p.actionPermission(action)

	minRole := p.MinRoleForGovernance
	if perm != nil && perm.MinRole != nil {
		minRole = *perm.MinRole
	}

	if role < minRole {
		return Result{
			Allowed: false,
			Reason:  fmt.Sprintf("role %s is insufficient; minimum required: %s", role, minRole),
		}
	}

	if perm != nil {
		if perm.restricts(risk) {
			return Result{
				Allowed: false,
				Reason:  fmt.Sprintf("action %s is restricted at risk level %s", action, risk),
			}
		}
		if perm.RequiresHumanConfirmation {
			requiresConfirmation = true
		}
	}

	if principal == PrincipalAgent {
		d := p.AgentDelegation

		if !d.AutonomousEnabled {
			return Result{
				Allowed:                 false,
				Reason:                  fmt.Sprintf("agents cannot act autonomously at %s layer", p.Layer),
				RequiresHumanConfirmation: true,
			}
		}

		if delegationDepth != nil {
			depth := *delegationDepth
			if depth > d.MaxDelegationDepth {
				return Result{
					Allowed:                 false,
					Reason:                  fmt.Sprintf("delegation depth %d exceeds maximum %d for %s layer", depth, d.MaxDelegationDepth, p.Layer),
					RequiresHumanConfirmation: true,
				}
			}
			if depth == d.MaxDelegationDepth {
				warnings = append(warnings, fmt.Sprintf("delegation depth at maximum (%d); further delegation not allowed", depth))
			}
		}

		for _, a := range d.HumanConfirmationRequired {
			if a == action {
				requiresConfirmation = true
				break
			}
		}

		if perm != nil && !perm.AgentAutonomous && !requiresConfirmation {
			requiresConfirmation = true
			warnings = append(warnings, fmt.Sprintf("action %s requires human confirmation when performed by agents", action))
		}
	}

	return Result{
		Allowed:                 true,
		Reason:                  "authorized",
		RequiresHumanConfirmation: requiresConfirmation,
		Warnings:                warnings,
	}
}
