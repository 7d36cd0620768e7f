package metapolicy

// role is a small constructor helper so the default tables below read close
// to the source's field-per-line struct literals.
func role(r RoleLevel) *RoleLevel { return &r }

// DefaultPolicies returns the four layer-wide defaults applied when no
// scoped override exists for a unit. Every field is ported from the
// governance engine's own per-layer defaults.
func DefaultPolicies() []Policy {
	return []Policy{defaultCompanyPolicy(), defaultOrgPolicy(), defaultTeamPolicy(), defaultProjectPolicy()}
}

func defaultCompanyPolicy() Policy {
	return Policy{
		Layer:                LayerCompany,
		MinRoleForGovernance: Admin,
		ActionPermissions: []ActionPermission{
			{Action: ActionCreatePolicy, MinRole: role(Architect), RequiresHumanConfirmation: true},
			{Action: ActionApprovePolicy, MinRole: role(Admin), RequiresHumanConfirmation: true},
			{Action: ActionModifyMetaGovernance, MinRole: role(Admin), RequiresHumanConfirmation: true},
		},
		AgentDelegation: AgentDelegationConfig{
			AutonomousEnabled:  false,
			MaxDelegationDepth: 1,
			AllowedCapabilities: []Capability{
				CapKnowledgeRead, CapPolicyRead, CapGovernanceRead, CapOrgRead,
			},
			HumanConfirmationRequired: []ActionType{
				ActionCreatePolicy, ActionApprovePolicy, ActionRejectPolicy, ActionDeletePolicy,
				ActionProposeKnowledge, ActionApproveKnowledge, ActionEditKnowledge, ActionDeleteKnowledge,
				ActionAssignRole, ActionRevokeRole, ActionModifyGovernanceConfig, ActionModifyMetaGovernance,
			},
			SessionTimeoutHours: 8,
			RateLimits: &AgentRateLimits{
				ActionsPerMinute: 10, ActionsPerHour: 100,
				GovernanceSubmissionsPerDay: 2, MemoryWritesPerHour: 20,
			},
		},
		EscalationConfig: EscalationConfig{
			Enabled:             true,
			InitialTimeoutHours: 12,
			Tiers: []EscalationTier{{
				Name:                 "Admin Escalation",
				TimeoutHours:         12,
				EscalateTo:           EscalationTarget{Kind: TargetRoleInScope, Role: Admin},
				NotificationChannels: []NotificationChannel{ChannelEmail, ChannelSlack, ChannelPagerDuty},
			}},
			FallbackAction:         FallbackNotifyEmergency,
			ReminderIntervalsHours: []int{6, 10},
		},
		Active: true,
	}
}

func defaultOrgPolicy() Policy {
	return Policy{
		Layer:                LayerOrganization,
		MinRoleForGovernance: Architect,
		ActionPermissions: []ActionPermission{
			{
				Action: ActionCreatePolicy, MinRole: role(TechLead), RequiresHumanConfirmation: true,
				RestrictedRiskLevels: []RiskLevel{RiskCritical},
			},
			{Action: ActionApprovePolicy, MinRole: role(Architect), RequiresHumanConfirmation: true},
			{
				Action: ActionProposeKnowledge, MinRole: role(Developer), AgentAutonomous: true,
				RestrictedRiskLevels: []RiskLevel{RiskHigh, RiskCritical},
			},
		},
		AgentDelegation: AgentDelegationConfig{
			AutonomousEnabled:  true,
			MaxDelegationDepth: 2,
			AllowedCapabilities: []Capability{
				CapMemoryRead, CapMemoryWrite, CapKnowledgeRead, CapKnowledgePropose,
				CapPolicyRead, CapPolicySimulate, CapGovernanceRead, CapGovernanceSubmit, CapOrgRead,
			},
			HumanConfirmationRequired: []ActionType{
				ActionDeletePolicy, ActionDeleteKnowledge, ActionAssignRole, ActionRevokeRole, ActionModifyGovernanceConfig,
			},
			SessionTimeoutHours: 12,
			RateLimits: &AgentRateLimits{
				ActionsPerMinute: 20, ActionsPerHour: 300,
				GovernanceSubmissionsPerDay: 5, MemoryWritesPerHour: 50,
			},
		},
		EscalationConfig: defaultEscalationConfig(),
		Active:           true,
	}
}

func defaultTeamPolicy() Policy {
	return Policy{
		Layer:                LayerTeam,
		MinRoleForGovernance: TechLead,
		ActionPermissions: []ActionPermission{
			{
				Action: ActionCreatePolicy, MinRole: role(Developer), AgentAutonomous: true,
				RestrictedRiskLevels: []RiskLevel{RiskHigh, RiskCritical},
			},
			{Action: ActionApprovePolicy, MinRole: role(TechLead), RequiresHumanConfirmation: true},
			{
				Action: ActionProposeKnowledge, MinRole: role(Developer), AgentAutonomous: true,
				RestrictedRiskLevels: []RiskLevel{RiskCritical},
			},
			{Action: ActionPromoteMemory, MinRole: role(Developer), AgentAutonomous: true},
		},
		AgentDelegation: AgentDelegationConfig{
			AutonomousEnabled:  true,
			MaxDelegationDepth: 3,
			AllowedCapabilities: []Capability{
				CapMemoryRead, CapMemoryWrite, CapMemoryPromote,
				CapKnowledgeRead, CapKnowledgePropose,
				CapPolicyRead, CapPolicyCreate, CapPolicySimulate,
				CapGovernanceRead, CapGovernanceSubmit, CapOrgRead,
			},
			HumanConfirmationRequired: []ActionType{
				ActionDeletePolicy, ActionDeleteKnowledge, ActionDeleteMemory, ActionModifyGovernanceConfig,
			},
			SessionTimeoutHours: 24,
			RateLimits: &AgentRateLimits{
				ActionsPerMinute: 60, ActionsPerHour: 1000,
				GovernanceSubmissionsPerDay: 20, MemoryWritesPerHour: 200,
			},
		},
		EscalationConfig: defaultEscalationConfig(),
		Active:           true,
	}
}

func defaultProjectPolicy() Policy {
	return Policy{
		Layer:                LayerProject,
		MinRoleForGovernance: Developer,
		ActionPermissions: []ActionPermission{
			{
				Action: ActionCreatePolicy, MinRole: role(Developer), AgentAutonomous: true,
				RestrictedRiskLevels: []RiskLevel{RiskCritical},
			},
			{
				Action: ActionApprovePolicy, MinRole: role(Developer), RequiresHumanConfirmation: true,
				RestrictedRiskLevels: []RiskLevel{RiskHigh, RiskCritical},
			},
			{Action: ActionProposeKnowledge, MinRole: role(Developer), AgentAutonomous: true},
			{
				Action: ActionApproveKnowledge, MinRole: role(Developer), AgentAutonomous: true,
				RestrictedRiskLevels: []RiskLevel{RiskHigh, RiskCritical},
			},
			{Action: ActionPromoteMemory, MinRole: role(Developer), AgentAutonomous: true},
		},
		AgentDelegation: AgentDelegationConfig{
			AutonomousEnabled:  true,
			MaxDelegationDepth: 3,
			AllowedCapabilities: []Capability{
				CapMemoryRead, CapMemoryWrite, CapMemoryDelete, CapMemoryPromote,
				CapKnowledgeRead, CapKnowledgePropose, CapKnowledgeEdit,
				CapPolicyRead, CapPolicyCreate, CapPolicySimulate,
				CapGovernanceRead, CapGovernanceSubmit, CapOrgRead,
				CapAgentRegister, CapAgentDelegate,
			},
			HumanConfirmationRequired: []ActionType{ActionDeletePolicy, ActionModifyGovernanceConfig},
			SessionTimeoutHours:       48,
			RateLimits: &AgentRateLimits{
				ActionsPerMinute: 60, ActionsPerHour: 1000,
				GovernanceSubmissionsPerDay: 20, MemoryWritesPerHour: 200,
			},
		},
		EscalationConfig: EscalationConfig{
			Enabled:             true,
			InitialTimeoutHours: 48,
			Tiers: []EscalationTier{{
				Name:                 "Team Escalation",
				TimeoutHours:         24,
				EscalateTo:           EscalationTarget{Kind: TargetParentScope},
				NotificationChannels: []NotificationChannel{ChannelEmail},
			}},
			FallbackAction:         FallbackExpireRequest,
			ReminderIntervalsHours: []int{24, 36},
		},
		Active: true,
	}
}

// defaultEscalationConfig is the zero-value EscalationConfig the source
// reaches for via #[derive(Default)] for the org and team layers: disabled,
// no tiers, expire on fallback.
func defaultEscalationConfig() EscalationConfig {
	return EscalationConfig{FallbackAction: FallbackExpireRequest}
}
