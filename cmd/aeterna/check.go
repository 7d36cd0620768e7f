package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kikokikok/aeterna-sub000/pkg/llmhook"
)

// newCheckCmd runs an on-demand semantic drift check of a piece of content
// against a unit's effective policy, the same analyze_drift contract the
// governance scheduler's semantic-analysis job calls (spec.md §4.4/§7).
func newCheckCmd() *cobra.Command {
	var unitID, content string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check content against a unit's effective policy for drift",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := tenantContext()
			if err != nil {
				return err
			}
			if unitID == "" || content == "" {
				return fmt.Errorf("--unit and --content are required")
			}
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			ctx := cmd.Context()

			pol, err := d.policies.EffectivePolicy(ctx, tc, unitID)
			if err != nil {
				return err
			}
			policies := make([]string, 0, len(pol.ActionPermissions))
			for _, ap := range pol.ActionPermissions {
				policies = append(policies, fmt.Sprintf("%s requires human confirmation=%v", ap.Action, ap.RequiresHumanConfirmation))
			}

			var hook llmhook.AnalyzeDrift = llmhook.NoopHook{}
			if d.cfg.AnthropicAPIKey != "" {
				hook = llmhook.NewAnthropicHook(d.cfg.AnthropicAPIKey, d.cfg.AnthropicModel)
			}

			result, err := hook.AnalyzeDrift(ctx, content, policies)
			if err != nil {
				return err
			}
			return printResult(result, func() {
				fmt.Printf("is_valid=%v violations=%d\n", result.IsValid, len(result.Violations))
				for _, v := range result.Violations {
					fmt.Printf("  [%s] %s: %s (suppressed=%v)\n", v.Severity, v.Rule, v.Message, v.Suppressed)
				}
			})
		},
	}
	cmd.Flags().StringVar(&unitID, "unit", "", "unit id whose effective policy to check against (required)")
	cmd.Flags().StringVar(&content, "content", "", "content to analyze (required)")
	return cmd
}
