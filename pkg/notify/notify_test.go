package notify

import (
	"context"
	"log/slog"
	"testing"

	"github.com/kikokikok/aeterna-sub000/pkg/metapolicy"
)

func TestLogNotifierDeliversWithoutError(t *testing.T) {
	n := NewLogNotifier(slog.Default())
	err := n.Notify(context.Background(), Notification{
		TenantID: "acme", Channel: ChannelEmail, Recipient: "user-1",
		Subject: "approval pending", TargetKind: "approval_request", TargetID: "req-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFromPolicyChannelPassesThrough(t *testing.T) {
	if got := FromPolicyChannel(metapolicy.ChannelSlack); got != ChannelSlack {
		t.Fatalf("got %s, want %s", got, ChannelSlack)
	}
}
