package graph

import (
	"context"
	"encoding/json"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	gstore "github.com/kikokikok/aeterna-sub000/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gstore.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate("../../migrations"); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewService(db, nil, nil)
}

func mustNode(id, tenantID string) Node {
	return Node{ID: id, TenantID: tenantID, Label: id, Properties: json.RawMessage(`{}`)}
}

func TestAddNodeIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tctx := Ctx{TenantID: "acme-1"}

	n := mustNode("n1", "acme-1")
	if err := svc.AddNode(ctx, tctx, n); err != nil {
		t.Fatalf("add_node: %v", err)
	}
	if err := svc.AddNode(ctx, tctx, n); err != nil {
		t.Fatalf("add_node (repeat): %v", err)
	}

	stats, err := svc.GetStats(ctx, tctx)
	if err != nil {
		t.Fatalf("get_stats: %v", err)
	}
	if stats.NodeCount != 1 {
		t.Fatalf("node count = %d, want 1 (idempotent upsert)", stats.NodeCount)
	}
}

func TestSoftDeleteNodeCascadesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tctx := Ctx{TenantID: "acme-1"}

	n1, n2 := mustNode("n1", "acme-1"), mustNode("n2", "acme-1")
	if err := svc.AddNode(ctx, tctx, n1); err != nil {
		t.Fatal(err)
	}
	if err := svc.AddNode(ctx, tctx, n2); err != nil {
		t.Fatal(err)
	}
	e := Edge{ID: "e1", TenantID: "acme-1", SourceID: "n1", TargetID: "n2", Relation: "rel", Properties: json.RawMessage(`{}`)}
	if err := svc.AddEdge(ctx, tctx, e); err != nil {
		t.Fatal(err)
	}

	if err := svc.SoftDeleteNode(ctx, tctx, "n1"); err != nil {
		t.Fatalf("soft_delete_node: %v", err)
	}

	stats, err := svc.GetStats(ctx, tctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.EdgeCount != 0 {
		t.Fatalf("edge count after cascade = %d, want 0", stats.EdgeCount)
	}

	if err := svc.SoftDeleteNode(ctx, tctx, "n1"); err == nil {
		t.Fatal("expected NodeNotFound on re-delete")
	}
}

func TestAddEdgeReferentialIntegrity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tctx := Ctx{TenantID: "acme-1"}

	e := Edge{ID: "e1", TenantID: "acme-1", SourceID: "missing-1", TargetID: "missing-2", Relation: "rel", Properties: json.RawMessage(`{}`)}
	if err := svc.AddEdge(ctx, tctx, e); err == nil {
		t.Fatal("expected ReferentialIntegrity error for missing endpoints")
	}
}

func TestAddNodesAndEdgesAtomicRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tctx := Ctx{TenantID: "acme-1"}

	nodes := []Node{mustNode("n1", "acme-1")}
	edges := []Edge{
		{ID: "e1", TenantID: "acme-1", SourceID: "n1", TargetID: "does-not-exist", Relation: "rel", Properties: json.RawMessage(`{}`)},
	}

	if err := svc.AddNodesAndEdgesAtomic(ctx, tctx, nodes, edges); err == nil {
		t.Fatal("expected batch failure")
	}

	stats, err := svc.GetStats(ctx, tctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.NodeCount != 0 {
		t.Fatalf("node count after rollback = %d, want 0 (n1 must not survive)", stats.NodeCount)
	}
}

func TestScenarioSeedFindPathThenDeleteBreaksIt(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tctx := Ctx{TenantID: "acme-1"}

	for _, id := range []string{"n1", "n2", "n3"} {
		if err := svc.AddNode(ctx, tctx, mustNode(id, "acme-1")); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range []Edge{
		{ID: "e12", TenantID: "acme-1", SourceID: "n1", TargetID: "n2", Relation: "rel", Properties: json.RawMessage(`{}`)},
		{ID: "e23", TenantID: "acme-1", SourceID: "n2", TargetID: "n3", Relation: "rel", Properties: json.RawMessage(`{}`)},
	} {
		if err := svc.AddEdge(ctx, tctx, e); err != nil {
			t.Fatal(err)
		}
	}

	path, err := svc.ShortestPath(ctx, tctx, "n1", "n3", nil)
	if err != nil {
		t.Fatalf("shortest_path: %v", err)
	}
	if len(path) != 2 {
		t.Fatalf("path length = %d, want 2", len(path))
	}

	if err := svc.SoftDeleteNode(ctx, tctx, "n2"); err != nil {
		t.Fatal(err)
	}

	path, err = svc.ShortestPath(ctx, tctx, "n1", "n3", nil)
	if err != nil {
		t.Fatalf("shortest_path after delete: %v", err)
	}
	if len(path) != 0 {
		t.Fatalf("path after deleting n2 = %v, want empty", path)
	}
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if err := svc.AddNode(ctx, Ctx{TenantID: "acme-1"}, mustNode("n1", "acme-1")); err != nil {
		t.Fatal(err)
	}

	other := Ctx{TenantID: "other"}
	stats, err := svc.GetStats(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if stats.NodeCount != 0 {
		t.Fatalf("cross-tenant node count = %d, want 0", stats.NodeCount)
	}
}
