package llmhook

import (
	"context"
	"testing"
)

func TestNoopHookAlwaysValid(t *testing.T) {
	result, err := NoopHook{}.AnalyzeDrift(context.Background(), "some content", []string{"policy a"})
	if err != nil {
		t.Fatalf("analyze_drift: %v", err)
	}
	if !result.IsValid || len(result.Violations) != 0 {
		t.Fatalf("result = %+v, want valid with no violations", result)
	}
}
