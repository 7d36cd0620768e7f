package govconfig

import (
	"context"
	"testing"

	gstore "github.com/kikokikok/aeterna-sub000/internal/store"
	"github.com/kikokikok/aeterna-sub000/pkg/approval"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gstore.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate("../../migrations"); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewStore(db.DB)
}

func TestGetReturnsDefaultWhenUnconfigured(t *testing.T) {
	s := newTestStore(t)
	cfg, err := s.Get(context.Background(), "acme")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ApprovalMode != approval.ModeQuorum || cfg.MinApprovers != 2 || cfg.TimeoutHours != 72 {
		t.Fatalf("unexpected default: %+v", cfg)
	}
}

func TestUpsertThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := Config{
		TenantID: "acme", ApprovalMode: approval.ModeUnanimous, MinApprovers: 3,
		TimeoutHours: 24, AutoApprove: false, EscalationContact: "oncall@acme.example",
	}
	if err := s.Upsert(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestApplyTemplateThenUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tmpl, err := FindTemplate("permissive")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, Config{
		TenantID: "acme", ApprovalMode: tmpl.ApprovalMode, MinApprovers: tmpl.MinApprovers,
		TimeoutHours: tmpl.TimeoutHours, AutoApprove: tmpl.AutoApprove,
	}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if got.ApprovalMode != approval.ModeSingle || !got.AutoApprove {
		t.Fatalf("unexpected config after applying permissive template: %+v", got)
	}
}
