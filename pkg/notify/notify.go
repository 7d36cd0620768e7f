// Package notify declares the notification contract used by the approval
// and confirmation engines to announce state changes. Transport
// implementations (Slack, email, webhook) are out of scope for this module;
// only the interface and a logging stand-in live here.
package notify

import (
	"context"
	"log/slog"

	"github.com/kikokikok/aeterna-sub000/pkg/metapolicy"
)

// Channel identifies where a Notification should be delivered. The set
// matches metapolicy.NotificationChannel so a policy's configured channels
// can be passed straight through via FromPolicyChannel.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelSlack     Channel = "slack"
	ChannelPagerDuty Channel = "pagerduty"
)

// FromPolicyChannel converts an escalation tier's configured channel into
// the notify package's own Channel type.
func FromPolicyChannel(c metapolicy.NotificationChannel) Channel {
	return Channel(c)
}

// Notification is one event a governance component wants delivered.
type Notification struct {
	TenantID   string
	Channel    Channel
	Recipient  string
	Subject    string
	Body       string
	TargetKind string
	TargetID   string
}

// Notifier delivers Notifications. Implementations own retry and transport
// concerns; callers only construct the Notification and hand it off.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier logs notifications instead of delivering them. It is the
// default wired by the CLI/RPC shim boot sequence until a transport adapter
// is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, notification Notification) error {
	n.Logger.Info("notification",
		"tenant", notification.TenantID,
		"channel", notification.Channel,
		"recipient", notification.Recipient,
		"subject", notification.Subject,
		"target_kind", notification.TargetKind,
		"target_id", notification.TargetID,
	)
	return nil
}
