package llmhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicHook implements AnalyzeDrift against the Anthropic Messages API.
// It is constructed only when an API key is configured (internal/config);
// otherwise the scheduler falls back to NoopHook.
type AnthropicHook struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicHook builds an AnthropicHook for the given API key and model.
func NewAnthropicHook(apiKey, model string) *AnthropicHook {
	return &AnthropicHook{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

type driftResponse struct {
	IsValid    bool        `json:"is_valid"`
	Violations []Violation `json:"violations"`
}

// AnalyzeDrift asks the model to check content against the effective
// policies and parses back a ValidationResult. A malformed or non-JSON
// response is treated as "no violations found" rather than a hard failure —
// a drift scan that can't parse its own prompt's output should not take the
// whole job down.
func (h *AnthropicHook) AnalyzeDrift(ctx context.Context, content string, policies []string) (Result, error) {
	prompt := fmt.Sprintf(
		"You are a policy drift checker. Policies:\n%s\n\nContent:\n%s\n\n"+
			"Respond with a single JSON object: {\"is_valid\": bool, \"violations\": "+
			"[{\"rule\": str, \"message\": str, \"severity\": str, \"suppressed\": bool}]}. "+
			"No prose, JSON only.",
		strings.Join(policies, "\n"), content,
	)

	msg, err := h.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     h.model,
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("calling anthropic messages api: %w", err)
	}

	var raw string
	for _, block := range msg.Content {
		if block.Type == "text" {
			raw += block.Text
		}
	}

	var parsed driftResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return Result{IsValid: true}, nil
	}
	return Result{IsValid: parsed.IsValid, Violations: parsed.Violations}, nil
}
