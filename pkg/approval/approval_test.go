package approval

import (
	"context"
	"testing"
	"time"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
	gstore "github.com/kikokikok/aeterna-sub000/internal/store"
	"github.com/kikokikok/aeterna-sub000/pkg/metapolicy"
)

func newTestDB(t *testing.T) *gstore.Store {
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
	db := newTestDB(t)
	return NewService(db, nil, nil)
}

func str(s string) *string { return &s }

func TestCreateSingleModeRequiresOneApproval(t *testing.T) {
	svc := newTestService(t)
	req, err := svc.Create(context.Background(), CreateParams{
		TenantID: "acme", Kind: KindKnowledge, Target: "node-1",
		Title: "add fact", Risk: metapolicy.RiskLow, Requestor: "user-1",
		Mode: ModeSingle, TimeoutHours: 24,
	})
	if err != nil {
		t.Fatal(err)
	}
	if req.RequiredApprovals != 1 {
		t.Fatalf("required_approvals = %d, want 1", req.RequiredApprovals)
	}
	if req.Number == 0 {
		t.Fatal("expected a non-zero monotonic request number")
	}
	if req.Status != StatusPending {
		t.Fatalf("status = %s, want pending", req.Status)
	}
}

func TestCreateQuorumDefaultsToTwo(t *testing.T) {
	svc := newTestService(t)
	req, err := svc.Create(context.Background(), CreateParams{
		TenantID: "acme", Kind: KindPolicy, Target: "policy-1",
		Title: "change policy", Risk: metapolicy.RiskMedium, Requestor: "user-1",
		Mode: ModeQuorum, TimeoutHours: 24,
	})
	if err != nil {
		t.Fatal(err)
	}
	if req.RequiredApprovals != 2 {
		t.Fatalf("required_approvals = %d, want 2", req.RequiredApprovals)
	}
}

func TestCreateUnanimousFreezesApproverCount(t *testing.T) {
	svc := newTestService(t)
	req, err := svc.Create(context.Background(), CreateParams{
		TenantID: "acme", Kind: KindRole, Target: "role-1",
		Title: "grant admin", Risk: metapolicy.RiskHigh, Requestor: "user-1",
		Mode: ModeUnanimous, AuthorizedApprovers: []string{"a", "b", "c"}, TimeoutHours: 24,
	})
	if err != nil {
		t.Fatal(err)
	}
	if req.RequiredApprovals != 3 {
		t.Fatalf("required_approvals = %d, want 3 (frozen approver count)", req.RequiredApprovals)
	}
}

func TestSequentialNumbersPerTenant(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	params := CreateParams{TenantID: "acme", Kind: KindMemory, Target: "m-1",
		Title: "t", Risk: metapolicy.RiskLow, Requestor: "u", Mode: ModeSingle, TimeoutHours: 24}

	first, err := svc.Create(ctx, params)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Create(ctx, params)
	if err != nil {
		t.Fatal(err)
	}
	if second.Number != first.Number+1 {
		t.Fatalf("expected sequential numbers, got %d then %d", first.Number, second.Number)
	}
}

func TestAddDecisionApprovesAtThreshold(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", Kind: KindKnowledge, Target: "n-1",
		Title: "t", Risk: metapolicy.RiskLow, Requestor: "u",
		Mode: ModeQuorum, RequiredApprovals: 2, TimeoutHours: 24,
	})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.AddDecision(ctx, "acme", req.ID, "approver-1", VerdictApprove, nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != StatusPending {
		t.Fatalf("status after 1/2 approvals = %s, want pending", updated.Status)
	}

	updated, err = svc.AddDecision(ctx, "acme", req.ID, "approver-2", VerdictApprove, nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != StatusApproved {
		t.Fatalf("status after 2/2 approvals = %s, want approved", updated.Status)
	}
	if updated.CurrentApprovals != 2 {
		t.Fatalf("current_approvals = %d, want 2", updated.CurrentApprovals)
	}
}

func TestAddDecisionRejectRequiresReason(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", Kind: KindConfig, Target: "c-1",
		Title: "t", Risk: metapolicy.RiskLow, Requestor: "u",
		Mode: ModeSingle, TimeoutHours: 24,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddDecision(ctx, "acme", req.ID, "approver-1", VerdictReject, nil); !govern.Is(err, govern.KindMissingReason) {
		t.Fatalf("expected KindMissingReason, got %v", err)
	}
}

func TestAddDecisionRejectResolvesImmediately(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", Kind: KindConfig, Target: "c-1",
		Title: "t", Risk: metapolicy.RiskLow, Requestor: "u",
		Mode: ModeQuorum, RequiredApprovals: 3, TimeoutHours: 24,
	})
	if err != nil {
		t.Fatal(err)
	}
	updated, err := svc.AddDecision(ctx, "acme", req.ID, "approver-1", VerdictReject, str("not ready"))
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != StatusRejected {
		t.Fatalf("status = %s, want rejected", updated.Status)
	}
}

func TestAddDecisionDuplicateApproverRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", Kind: KindConfig, Target: "c-1",
		Title: "t", Risk: metapolicy.RiskLow, Requestor: "u",
		Mode: ModeQuorum, RequiredApprovals: 2, TimeoutHours: 24,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddDecision(ctx, "acme", req.ID, "approver-1", VerdictApprove, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddDecision(ctx, "acme", req.ID, "approver-1", VerdictApprove, nil); !govern.Is(err, govern.KindDuplicateDecision) {
		t.Fatalf("expected KindDuplicateDecision, got %v", err)
	}
}

func TestAddDecisionAbstainNeverBlocks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", Kind: KindConfig, Target: "c-1",
		Title: "t", Risk: metapolicy.RiskLow, Requestor: "u",
		Mode: ModeQuorum, RequiredApprovals: 1, TimeoutHours: 24,
	})
	if err != nil {
		t.Fatal(err)
	}
	updated, err := svc.AddDecision(ctx, "acme", req.ID, "approver-1", VerdictAbstain, nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != StatusPending {
		t.Fatalf("status after abstain = %s, want still pending", updated.Status)
	}

	updated, err = svc.AddDecision(ctx, "acme", req.ID, "approver-2", VerdictApprove, nil)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != StatusApproved {
		t.Fatalf("status = %s, want approved (abstain must not have counted toward required)", updated.Status)
	}
}

func TestListPendingRequestsFiltersByKindAndRequestor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", Kind: KindKnowledge, Target: "n-1", Title: "t",
		Risk: metapolicy.RiskLow, Requestor: "alice", Mode: ModeSingle, TimeoutHours: 24,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", Kind: KindPolicy, Target: "p-1", Title: "t",
		Risk: metapolicy.RiskLow, Requestor: "bob", Mode: ModeSingle, TimeoutHours: 24,
	}); err != nil {
		t.Fatal(err)
	}

	knowledge := KindKnowledge
	got, err := svc.ListPendingRequests(ctx, "acme", ListFilters{Kind: &knowledge})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Requestor != "alice" {
		t.Fatalf("unexpected filtered list: %+v", got)
	}
}

func TestMarkAppliedRequiresApprovedStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", Kind: KindKnowledge, Target: "n-1", Title: "t",
		Risk: metapolicy.RiskLow, Requestor: "u", Mode: ModeSingle, TimeoutHours: 24,
	})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := svc.MarkApplied(ctx, "acme", req.ID, "operator-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected MarkApplied to fail before the request is approved")
	}

	if _, err := svc.AddDecision(ctx, "acme", req.ID, "approver-1", VerdictApprove, nil); err != nil {
		t.Fatal(err)
	}
	ok, err = svc.MarkApplied(ctx, "acme", req.ID, "operator-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected MarkApplied to succeed after approval")
	}
}

func TestExpireAndEscalateExpiresPastDueRequests(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, nil)
	ctx := context.Background()

	req, err := svc.Create(ctx, CreateParams{
		TenantID: "acme", Kind: KindKnowledge, Target: "n-1", Title: "t",
		Risk: metapolicy.RiskLow, Requestor: "u", Mode: ModeSingle, TimeoutHours: -1,
	})
	if err != nil {
		t.Fatal(err)
	}

	expired, escalated, err := svc.ExpireAndEscalate(ctx, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if expired != 1 || escalated != 0 {
		t.Fatalf("expired=%d escalated=%d, want 1, 0", expired, escalated)
	}

	got, err := svc.Get(ctx, "acme", req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}
}
