package scheduler

import (
	"context"

	"github.com/kikokikok/aeterna-sub000/pkg/tenant"
)

// DriftChecker is the governance engine's drift-check hook the quick drift
// scan job calls per project-kind unit.
type DriftChecker interface {
	CheckDrift(ctx context.Context, tctx tenant.Context, projectID string) error
}

// PolicyProvider resolves the effective policy set for a unit, as
// pkg/metapolicy will once it is wired in; semantic analysis skips a
// project with no policies.
type PolicyProvider interface {
	EffectivePolicies(ctx context.Context, tctx tenant.Context, unitID string) ([]string, error)
}

// KnowledgeProvider concatenates a project's project-layer knowledge
// entries into a single blob for the LLM hook to analyze.
type KnowledgeProvider interface {
	ProjectContent(ctx context.Context, tctx tenant.Context, unitID string) (string, error)
}

// EventPublisher republishes a dead-lettered event's payload. DLQ
// processing marks the event Published on success, DeadLettered again on
// failure.
type EventPublisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// NoopPolicyProvider always reports no policies configured, so semantic
// analysis skips every project rather than failing when nothing is wired.
type NoopPolicyProvider struct{}

func (NoopPolicyProvider) EffectivePolicies(context.Context, tenant.Context, string) ([]string, error) {
	return nil, nil
}

// NoopKnowledgeProvider always reports empty content.
type NoopKnowledgeProvider struct{}

func (NoopKnowledgeProvider) ProjectContent(context.Context, tenant.Context, string) (string, error) {
	return "", nil
}

// NoopDriftChecker performs no check and never fails.
type NoopDriftChecker struct{}

func (NoopDriftChecker) CheckDrift(context.Context, tenant.Context, string) error {
	return nil
}

// NoopPublisher always succeeds without actually publishing anything.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, []byte) error {
	return nil
}
