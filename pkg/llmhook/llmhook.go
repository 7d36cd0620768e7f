// Package llmhook defines the external LLM hook contract (spec.md §7):
// analyze_drift(content, policies) -> ValidationResult{is_valid, violations}.
// The scheduler's semantic-analysis job is the only caller; everything else
// in this package is a pluggable implementation of that one contract.
package llmhook

import "context"

// Violation is a single policy deviation the LLM hook reports.
type Violation struct {
	Rule       string
	Message    string
	Severity   string
	Suppressed bool
}

// Result is the ValidationResult spec.md §7 names.
type Result struct {
	IsValid    bool
	Violations []Violation
}

// AnalyzeDrift is the external LLM hook contract. Implementations may call
// out to a hosted model, a local model, or nothing at all (NoopHook).
type AnalyzeDrift interface {
	AnalyzeDrift(ctx context.Context, content string, policies []string) (Result, error)
}

// NoopHook always returns an empty, valid result. It is the default when no
// LLM backend is configured, so semantic-analysis jobs have something safe
// to call rather than a nil interface.
type NoopHook struct{}

func (NoopHook) AnalyzeDrift(context.Context, string, []string) (Result, error) {
	return Result{IsValid: true}, nil
}
