package metapolicy

import (
	"context"
	"strings"
	"testing"

	gstore "github.com/kikokikok/aeterna-sub000/internal/store"
	"github.com/kikokikok/aeterna-sub000/pkg/tenant"
)

func newTestStore(t *testing.T) *gstore.Store {
	t.Helper()
	db, err := gstore.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate("../../migrations"); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return db
}

func depth(d int) *int { return &d }

func TestCompanyLayerAgentCannotActAutonomously(t *testing.T) {
	policy := defaultCompanyPolicy()
	result := policy.CheckAuthorization(PrincipalAgent, Admin, ActionCreatePolicy, RiskLow, depth(1))
	if result.Allowed {
		t.Fatal("expected company-layer agent action to be denied")
	}
	if !result.RequiresHumanConfirmation {
		t.Fatal("expected requires_human_confirmation on denial")
	}
	if !strings.Contains(result.Reason, "cannot act autonomously") {
		t.Fatalf("reason = %q, want to contain 'cannot act autonomously'", result.Reason)
	}
}

func TestProjectLayerAgentProposeKnowledgeLowRiskAllowed(t *testing.T) {
	policy := defaultProjectPolicy()
	result := policy.CheckAuthorization(PrincipalAgent, Developer, ActionProposeKnowledge, RiskLow, depth(2))
	if !result.Allowed {
		t.Fatalf("expected allowed, got denied: %s", result.Reason)
	}
	if result.RequiresHumanConfirmation {
		t.Fatal("expected no human confirmation required")
	}
}

func TestRoleBelowMinimumDenied(t *testing.T) {
	policy := defaultOrgPolicy()
	result := policy.CheckAuthorization(PrincipalUser, Developer, ActionApprovePolicy, RiskLow, nil)
	if result.Allowed {
		t.Fatal("expected denial: developer is below architect minimum for approve_policy")
	}
}

func TestRestrictedRiskLevelDenied(t *testing.T) {
	policy := defaultOrgPolicy()
	result := policy.CheckAuthorization(PrincipalUser, Architect, ActionCreatePolicy, RiskCritical, nil)
	if result.Allowed {
		t.Fatal("expected denial: create_policy is restricted at critical risk for org layer")
	}
}

func TestDelegationDepthExceededDenied(t *testing.T) {
	policy := defaultTeamPolicy()
	result := policy.CheckAuthorization(PrincipalAgent, Developer, ActionPromoteMemory, RiskLow, depth(4))
	if result.Allowed {
		t.Fatal("expected denial: depth 4 exceeds team layer's max depth 3")
	}
}

func TestDelegationDepthAtMaximumWarns(t *testing.T) {
	policy := defaultTeamPolicy()
	result := policy.CheckAuthorization(PrincipalAgent, Developer, ActionPromoteMemory, RiskLow, depth(3))
	if !result.Allowed {
		t.Fatalf("expected allowed at exactly max depth, got denied: %s", result.Reason)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning at maximum delegation depth")
	}
}

func TestActionNotAgentAutonomousRequiresConfirmation(t *testing.T) {
	policy := defaultOrgPolicy()
	result := policy.CheckAuthorization(PrincipalAgent, Architect, ActionApprovePolicy, RiskLow, depth(1))
	if !result.Allowed {
		t.Fatalf("expected allowed, got denied: %s", result.Reason)
	}
	if !result.RequiresHumanConfirmation {
		t.Fatal("approve_policy has agent_autonomous=false, so an agent caller must require confirmation")
	}
}

func TestEffectivePolicyFallsBackToLayerDefault(t *testing.T) {
	db := newTestStore(t)
	units := tenant.NewService(tenant.NewStore(db.DB))
	svc := NewService(NewStore(db.DB), units)
	ctx := context.Background()
	tctx := tenant.Context{TenantID: "acme"}

	company, err := units.CreateUnit(ctx, tctx, "Acme", tenant.Company, nil)
	if err != nil {
		t.Fatal(err)
	}

	policy, err := svc.EffectivePolicy(ctx, tctx, company.ID)
	if err != nil {
		t.Fatal(err)
	}
	if policy.MinRoleForGovernance != Admin {
		t.Fatalf("expected the compiled-in company default (admin), got %s", policy.MinRoleForGovernance)
	}
}

func TestEffectivePolicyPrefersScopedOverride(t *testing.T) {
	db := newTestStore(t)
	units := tenant.NewService(tenant.NewStore(db.DB))
	store := NewStore(db.DB)
	svc := NewService(store, units)
	ctx := context.Background()
	tctx := tenant.Context{TenantID: "acme"}

	company, err := units.CreateUnit(ctx, tctx, "Acme", tenant.Company, nil)
	if err != nil {
		t.Fatal(err)
	}

	scopeID := company.ID
	override := Policy{
		ID:                   "pol-1",
		Layer:                LayerCompany,
		ScopeID:              &scopeID,
		MinRoleForGovernance: Developer,
		Active:               true,
	}
	if err := store.Upsert(ctx, "acme", override); err != nil {
		t.Fatal(err)
	}

	policy, err := svc.EffectivePolicy(ctx, tctx, company.ID)
	if err != nil {
		t.Fatal(err)
	}
	if policy.MinRoleForGovernance != Developer {
		t.Fatalf("expected the scoped override (developer), got %s", policy.MinRoleForGovernance)
	}
}

func TestUpsertLayerWideOverrideIsIdempotent(t *testing.T) {
	db := newTestStore(t)
	store := NewStore(db.DB)
	ctx := context.Background()

	p := Policy{ID: "wide-1", Layer: LayerTeam, MinRoleForGovernance: Architect, Active: true}
	if err := store.Upsert(ctx, "acme", p); err != nil {
		t.Fatal(err)
	}
	p.ID = "wide-2"
	p.MinRoleForGovernance = Admin
	if err := store.Upsert(ctx, "acme", p); err != nil {
		t.Fatal(err)
	}

	found, err := store.Find(ctx, "acme", LayerTeam, nil)
	if err != nil {
		t.Fatal(err)
	}
	if found == nil {
		t.Fatal("expected a layer-wide row")
	}
	if found.MinRoleForGovernance != Admin {
		t.Fatalf("second upsert should have replaced the first row, got %s", found.MinRoleForGovernance)
	}

	var count int
	row := db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM meta_policies WHERE tenant_id = ? AND layer = ?`, "acme", "team")
	if err := row.Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one layer-wide row, got %d", count)
	}
}
