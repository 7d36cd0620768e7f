package metapolicy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kikokikok/aeterna-sub000/internal/store"
)

// policyRow is the JSON shape persisted in meta_policies.policy, matching
// Policy minus the fields derivable from the row itself (id, layer, scope).
type policyRow struct {
	MinRoleForGovernance RoleLevel              `json:"min_role_for_governance"`
	ActionPermissions    []jsonActionPermission `json:"action_permissions"`
	AgentDelegation      AgentDelegationConfig   `json:"agent_delegation"`
	EscalationConfig     EscalationConfig        `json:"escalation_config"`
	Active               bool                    `json:"active"`
}

// jsonActionPermission mirrors ActionPermission with snake_case JSON keys;
// MinRole stays a *RoleLevel and is omitted when unset. The distinct wire
// shape keeps the column's JSON self-describing.
type jsonActionPermission struct {
	Action                    ActionType  `json:"action"`
	MinRole                   *RoleLevel  `json:"min_role,omitempty"`
	AgentAutonomous           bool        `json:"agent_autonomous"`
	RequiresHumanConfirmation bool        `json:"requires_human_confirmation"`
	RestrictedRiskLevels      []RiskLevel `json:"restricted_risk_levels"`
}

func toJSONPermissions(perms []ActionPermission) []jsonActionPermission {
	out := make([]jsonActionPermission, len(perms))
	for i, p := range perms {
		out[i] = jsonActionPermission{
			Action:                    p.Action,
			MinRole:                   p.MinRole,
			AgentAutonomous:           p.AgentAutonomous,
			RequiresHumanConfirmation: p.RequiresHumanConfirmation,
			RestrictedRiskLevels:      p.RestrictedRiskLevels,
		}
	}
	return out
}

func fromJSONPermissions(perms []jsonActionPermission) []ActionPermission {
	out := make([]ActionPermission, len(perms))
	for i, p := range perms {
		out[i] = ActionPermission{
			Action:                    p.Action,
			MinRole:                   p.MinRole,
			AgentAutonomous:           p.AgentAutonomous,
			RequiresHumanConfirmation: p.RequiresHumanConfirmation,
			RestrictedRiskLevels:      p.RestrictedRiskLevels,
		}
	}
	return out
}

// Store persists scoped policy overrides in meta_policies. A row with
// scope_id = "" is a tenant's layer-wide override; absence of any row for a
// (tenant, layer, scope) falls back to the compiled-in DefaultPolicies.
type Store struct {
	dbtx store.DBTX
}

func NewStore(dbtx store.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

// Upsert inserts or replaces the override for (tenantID, p.Layer, p.ScopeID).
func (s *Store) Upsert(ctx context.Context, tenantID string, p Policy) error {
	row := policyRow{
		MinRoleForGovernance: p.MinRoleForGovernance,
		ActionPermissions:    toJSONPermissions(p.ActionPermissions),
		AgentDelegation:      p.AgentDelegation,
		EscalationConfig:     p.EscalationConfig,
		Active:               p.Active,
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshaling policy: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	// scope_id uses "" rather than NULL for the layer-wide row: SQLite's
	// UNIQUE index treats every NULL as distinct, which would let repeated
	// layer-wide upserts pile up duplicate rows instead of colliding.
	scopeCol := ""
	if p.ScopeID != nil {
		scopeCol = *p.ScopeID
	}

	_, err = s.dbtx.ExecContext(ctx,
		`INSERT INTO meta_policies (id, tenant_id, layer, scope_id, policy, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id, layer, scope_id) DO UPDATE SET
		   policy = excluded.policy,
		   updated_at = excluded.updated_at`,
		p.ID, tenantID, string(p.Layer), scopeCol, string(payload), now, now,
	)
	return err
}

// Find returns the stored override for (tenantID, layer, scopeID), or nil
// if none exists. scopeID == nil looks up the layer-wide override.
func (s *Store) Find(ctx context.Context, tenantID string, layer Layer, scopeID *string) (*Policy, error) {
	scope := ""
	if scopeID != nil {
		scope = *scopeID
	}
	row := s.dbtx.QueryRowContext(ctx,
		`SELECT id, layer, scope_id, policy FROM meta_policies WHERE tenant_id = ? AND layer = ? AND scope_id = ?`,
		tenantID, string(layer), scope)

	var id, layerCol, scopeCol string
	var payload string
	if err := row.Scan(&id, &layerCol, &scopeCol, &payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var r policyRow
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("unmarshaling policy: %w", err)
	}

	p := Policy{
		ID:                   id,
		Layer:                Layer(layerCol),
		MinRoleForGovernance: r.MinRoleForGovernance,
		ActionPermissions:    fromJSONPermissions(r.ActionPermissions),
		AgentDelegation:      r.AgentDelegation,
		EscalationConfig:     r.EscalationConfig,
		Active:               r.Active,
	}
	if scopeCol != "" {
		v := scopeCol
		p.ScopeID = &v
	}
	return &p, nil
}
