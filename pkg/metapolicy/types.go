// Package metapolicy implements the Meta-Governance Policy layer (C5):
// role-ordered authorization decisions for governance actions, with
// per-layer defaults applied when no scoped policy override exists.
package metapolicy

import "fmt"

// RoleLevel is a total, comparable ordering: viewer < developer < techlead
// < architect < admin.
type RoleLevel int

const (
	Viewer RoleLevel = iota
	Developer
	TechLead
	Architect
	Admin
)

func (r RoleLevel) String() string {
	switch r {
	case Viewer:
		return "viewer"
	case Developer:
		return "developer"
	case TechLead:
		return "techlead"
	case Architect:
		return "architect"
	case Admin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRoleLevel accepts both "techlead" and "tech_lead" spellings.
func ParseRoleLevel(s string) (RoleLevel, error) {
	switch s {
	case "viewer":
		return Viewer, nil
	case "developer":
		return Developer, nil
	case "techlead", "tech_lead":
		return TechLead, nil
	case "architect":
		return Architect, nil
	case "admin":
		return Admin, nil
	default:
		return 0, fmt.Errorf("metapolicy: unknown role %q", s)
	}
}

// PrincipalKind distinguishes a human caller from an autonomous agent;
// only agents are subject to delegation-depth and autonomy checks.
type PrincipalKind string

const (
	PrincipalUser   PrincipalKind = "user"
	PrincipalAgent  PrincipalKind = "agent"
	PrincipalSystem PrincipalKind = "system"
)

// RiskLevel is the risk classification carried by approval requests and
// governance actions (spec.md §3).
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskOrder = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// AtMost reports whether r is no riskier than other.
func (r RiskLevel) AtMost(other RiskLevel) bool {
	return riskOrder[r] <= riskOrder[other]
}

// Layer is the organizational level a policy applies at. Values align with
// pkg/tenant.Kind's string form ("organization", not the original source's
// "Org") so a Layer can be derived directly from a tenant.Kind.
type Layer string

const (
	LayerCompany      Layer = "company"
	LayerOrganization Layer = "organization"
	LayerTeam         Layer = "team"
	LayerProject      Layer = "project"
)

// ActionType is a governance action subject to authorization.
type ActionType string

const (
	ActionCreatePolicy          ActionType = "create_policy"
	ActionApprovePolicy         ActionType = "approve_policy"
	ActionRejectPolicy          ActionType = "reject_policy"
	ActionDeletePolicy          ActionType = "delete_policy"
	ActionProposeKnowledge      ActionType = "propose_knowledge"
	ActionApproveKnowledge      ActionType = "approve_knowledge"
	ActionEditKnowledge         ActionType = "edit_knowledge"
	ActionDeleteKnowledge       ActionType = "delete_knowledge"
	ActionPromoteMemory         ActionType = "promote_memory"
	ActionDeleteMemory          ActionType = "delete_memory"
	ActionAssignRole            ActionType = "assign_role"
	ActionRevokeRole            ActionType = "revoke_role"
	ActionModifyGovernanceConfig ActionType = "modify_governance_config"
	ActionModifyMetaGovernance  ActionType = "modify_meta_governance"
)

// Capability is a permission an agent's delegation grant can carry.
type Capability string

const (
	CapMemoryRead        Capability = "memory_read"
	CapMemoryWrite       Capability = "memory_write"
	CapMemoryDelete      Capability = "memory_delete"
	CapMemoryPromote     Capability = "memory_promote"
	CapKnowledgeRead      Capability = "knowledge_read"
	CapKnowledgePropose  Capability = "knowledge_propose"
	CapKnowledgeEdit     Capability = "knowledge_edit"
	CapPolicyRead        Capability = "policy_read"
	CapPolicyCreate      Capability = "policy_create"
	CapPolicySimulate    Capability = "policy_simulate"
	CapGovernanceRead    Capability = "governance_read"
	CapGovernanceSubmit  Capability = "governance_submit"
	CapOrgRead           Capability = "org_read"
	CapAgentRegister     Capability = "agent_register"
	CapAgentDelegate     Capability = "agent_delegate"
)

// NotificationChannel names an escalation notification target.
type NotificationChannel string

const (
	ChannelEmail     NotificationChannel = "email"
	ChannelSlack     NotificationChannel = "slack"
	ChannelPagerDuty NotificationChannel = "pagerduty"
)

// EscalationTargetKind selects how an escalation tier resolves its targets.
type EscalationTargetKind string

const (
	TargetRoleInScope EscalationTargetKind = "role_in_scope"
	TargetSpecificUser EscalationTargetKind = "specific_user"
	TargetParentScope EscalationTargetKind = "parent_scope"
	TargetCustomGroup EscalationTargetKind = "custom_group"
)

// EscalationTarget names who an escalation tier notifies.
type EscalationTarget struct {
	Kind EscalationTargetKind
	// Role is set when Kind == TargetRoleInScope.
	Role RoleLevel
	// UserID is set when Kind == TargetSpecificUser.
	UserID string
	// GroupName is set when Kind == TargetCustomGroup.
	GroupName string
}

// EscalationFallback is the action taken when no escalation tier resolves
// a pending request before it expires.
type EscalationFallback string

const (
	FallbackExpireRequest   EscalationFallback = "expire_request"
	FallbackAutoApprove     EscalationFallback = "auto_approve"
	FallbackWaitIndefinitely EscalationFallback = "wait_indefinitely"
	FallbackNotifyEmergency EscalationFallback = "notify_emergency"
)

// EscalationTier is one step of a policy's escalation ladder.
type EscalationTier struct {
	Name                string
	TimeoutHours        int
	EscalateTo          EscalationTarget
	NotificationChannels []NotificationChannel
}

// EscalationConfig is a layer's escalation ladder for unresolved approval
// requests and confirmations.
type EscalationConfig struct {
	Enabled              bool
	InitialTimeoutHours  int
	Tiers                []EscalationTier
	FallbackAction       EscalationFallback
	ReminderIntervalsHours []int
}

// AgentRateLimits bounds how often an autonomous agent may act.
type AgentRateLimits struct {
	ActionsPerMinute            int
	ActionsPerHour              int
	GovernanceSubmissionsPerDay int
	MemoryWritesPerHour         int
}

// AgentDelegationConfig governs whether and how deeply agents may act
// autonomously at a layer.
type AgentDelegationConfig struct {
	AutonomousEnabled       bool
	MaxDelegationDepth      int
	AllowedCapabilities     []Capability
	HumanConfirmationRequired []ActionType
	SessionTimeoutHours     int
	RateLimits              *AgentRateLimits
}

// ActionPermission is one action's override of a policy's layer-wide
// defaults.
type ActionPermission struct {
	Action                   ActionType
	MinRole                  *RoleLevel
	AgentAutonomous          bool
	RequiresHumanConfirmation bool
	RestrictedRiskLevels     []RiskLevel
}

func (p ActionPermission) restricts(risk RiskLevel) bool {
	for _, r := range p.RestrictedRiskLevels {
		if r == risk {
			return true
		}
	}
	return false
}

// Policy is a MetaGovernancePolicy: the authorization rules in force for one
// layer, optionally narrowed to a single scope (a specific unit id within
// that layer) rather than the layer-wide default.
type Policy struct {
	ID                  string
	Layer               Layer
	ScopeID             *string
	MinRoleForGovernance RoleLevel
	ActionPermissions   []ActionPermission
	AgentDelegation     AgentDelegationConfig
	EscalationConfig    EscalationConfig
	Active              bool
}

func (p Policy) actionPermission(action ActionType) *ActionPermission {
	for i := range p.ActionPermissions {
		if p.ActionPermissions[i].Action == action {
			return &p.ActionPermissions[i]
		}
	}
	return nil
}

// Result is the outcome of Policy.CheckAuthorization.
type Result struct {
	Allowed                 bool
	Reason                  string
	RequiresHumanConfirmation bool
	EscalationRequired      bool
	Warnings                []string
}
