package tenant

import (
	"context"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kikokikok/aeterna-sub000/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.Migrate("../../migrations"); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewService(NewStore(st.DB))
}

func TestHierarchyScenarioSeed(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tctx := Context{TenantID: "acme-1", PrincipalID: "u1", PrincipalKind: "user"}

	company, err := svc.CreateUnit(ctx, tctx, "Acme", Company, nil)
	if err != nil {
		t.Fatalf("creating company: %v", err)
	}
	org, err := svc.CreateUnit(ctx, tctx, "Platform", Organization, &company.ID)
	if err != nil {
		t.Fatalf("creating org: %v", err)
	}
	team, err := svc.CreateUnit(ctx, tctx, "Core", Team, &org.ID)
	if err != nil {
		t.Fatalf("creating team: %v", err)
	}
	project, err := svc.CreateUnit(ctx, tctx, "Aeterna", Project, &team.ID)
	if err != nil {
		t.Fatalf("creating project: %v", err)
	}

	descendants, err := svc.GetDescendants(ctx, tctx, company.ID)
	if err != nil {
		t.Fatalf("get_descendants: %v", err)
	}
	if len(descendants) != 3 {
		t.Fatalf("descendants = %d, want 3", len(descendants))
	}

	ancestors, err := svc.GetAncestors(ctx, tctx, project.ID)
	if err != nil {
		t.Fatalf("get_ancestors: %v", err)
	}
	if len(ancestors) != 3 || ancestors[0].ID != company.ID || ancestors[1].ID != org.ID || ancestors[2].ID != team.ID {
		t.Fatalf("ancestors = %+v, want [company org team] root-first", ancestors)
	}

	other := Context{TenantID: "other", PrincipalID: "u2", PrincipalKind: "user"}
	if got, err := svc.GetDescendants(ctx, other, company.ID); err != nil || len(got) != 0 {
		t.Fatalf("cross-tenant get_descendants = %+v, %v, want empty", got, err)
	}
	if got, err := svc.GetAncestors(ctx, other, project.ID); err != nil || len(got) != 0 {
		t.Fatalf("cross-tenant get_ancestors = %+v, %v, want empty", got, err)
	}
}

func TestCreateUnitRejectsWrongParentKind(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tctx := Context{TenantID: "acme-1", PrincipalID: "u1", PrincipalKind: "user"}

	company, err := svc.CreateUnit(ctx, tctx, "Acme", Company, nil)
	if err != nil {
		t.Fatalf("creating company: %v", err)
	}

	if _, err := svc.CreateUnit(ctx, tctx, "Bad Team", Team, &company.ID); err == nil {
		t.Fatal("expected error assigning a team directly under a company")
	}
}
