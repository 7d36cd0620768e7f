package confirmation

import (
	"context"
	"testing"

	gstore "github.com/kikokikok/aeterna-sub000/internal/store"
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

func newTestService(t *testing.T) *Service {
	return NewService(NewStore(newTestStore(t).DB))
}

func TestCreateRequiresAuthorizedApprovers(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Create(context.Background(), CreateParams{
		TenantID: "acme", AgentID: "agent-1", Action: "propose_knowledge",
		TargetKind: "knowledge", Risk: "low", Reason: ReasonAgentRequested,
		TimeoutHours: 24,
	})
	if err == nil {
		t.Fatal("expected an error when no authorized approvers are given")
	}
}

func TestResolveOnlySucceedsOnPendingRequests(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", AgentID: "agent-1", Action: "propose_knowledge",
		TargetKind: "knowledge", Risk: "low", Reason: ReasonAgentRequested,
		AuthorizedApprovers: []string{"user-1"}, TimeoutHours: 24,
	})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := svc.Resolve(ctx, "acme", req.ID, true, "user-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected the first resolution to succeed")
	}

	ok, err = svc.Resolve(ctx, "acme", req.ID, false, "user-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("resolving an already-resolved request must be a no-op")
	}

	got, err := svc.Get(ctx, "acme", req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusApproved {
		t.Fatalf("status = %s, want approved (the second resolve must not have overwritten it)", got.Status)
	}
}

func TestExpireOldRequestsMovesOnlyPastExpiry(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	fresh, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", AgentID: "agent-1", Action: "propose_knowledge",
		TargetKind: "knowledge", Risk: "low", Reason: ReasonAgentRequested,
		AuthorizedApprovers: []string{"user-1"}, TimeoutHours: 24,
	})
	if err != nil {
		t.Fatal(err)
	}
	stale, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", AgentID: "agent-1", Action: "propose_knowledge",
		TargetKind: "knowledge", Risk: "low", Reason: ReasonAgentRequested,
		AuthorizedApprovers: []string{"user-1"}, TimeoutHours: -1,
	})
	if err != nil {
		t.Fatal(err)
	}

	count, err := svc.ExpireOldRequests(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expired count = %d, want 1", count)
	}

	got, err := svc.Get(ctx, "acme", stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusExpired {
		t.Fatalf("stale request status = %s, want expired", got.Status)
	}

	got, err = svc.Get(ctx, "acme", fresh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusPending {
		t.Fatalf("fresh request status = %s, want pending", got.Status)
	}
}

func TestPendingForApproverFiltersByAuthorization(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", AgentID: "agent-1", Action: "propose_knowledge",
		TargetKind: "knowledge", Risk: "low", Reason: ReasonAgentRequested,
		AuthorizedApprovers: []string{"user-1"}, TimeoutHours: 24,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", AgentID: "agent-1", Action: "delete_policy",
		TargetKind: "policy", Risk: "critical", Reason: ReasonHighRisk,
		AuthorizedApprovers: []string{"user-2"}, TimeoutHours: 24,
	}); err != nil {
		t.Fatal(err)
	}

	pending, err := svc.PendingForApprover(ctx, "acme", "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending for user-1 = %d, want 1", len(pending))
	}
	if pending[0].Action != "propose_knowledge" {
		t.Fatalf("unexpected request surfaced: %+v", pending[0])
	}
}
