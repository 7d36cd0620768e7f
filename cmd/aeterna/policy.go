package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kikokikok/aeterna-sub000/pkg/approval"
	"github.com/kikokikok/aeterna-sub000/pkg/metapolicy"
)

// newPolicyCmd exposes the meta-governance policy layer (spec.md §4.5):
// inspecting the effective policy for a unit, translating free-text policy
// statements into structured rules, and proposing a policy change through
// the approval queue.
func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect effective policy and propose policy changes",
	}
	cmd.AddCommand(newPolicyShowCmd(), newPolicyTranslateCmd(), newPolicyProposeCmd())
	return cmd
}

type policyShowResult struct {
	Layer                string `json:"layer"`
	MinRoleForGovernance string `json:"min_role_for_governance"`
	Active               bool   `json:"active"`
	ActionCount          int    `json:"action_permission_count"`
}

func newPolicyShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <unit-id>",
		Short: "Print the effective meta-governance policy for a unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := tenantContext()
			if err != nil {
				return err
			}
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			pol, err := d.policies.EffectivePolicy(cmd.Context(), tc, args[0])
			if err != nil {
				return err
			}
			res := policyShowResult{
				Layer:                string(pol.Layer),
				MinRoleForGovernance: pol.MinRoleForGovernance.String(),
				Active:               pol.Active,
				ActionCount:          len(pol.ActionPermissions),
			}
			return printResult(res, func() {
				fmt.Printf("layer=%s min_role=%s active=%v action_overrides=%d\n",
					res.Layer, res.MinRoleForGovernance, res.Active, res.ActionCount)
			})
		},
	}
	return cmd
}

func newPolicyTranslateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <text>",
		Short: "Translate a natural-language policy statement into structured rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			rules, err := d.translator.Translate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResult(rules, func() {
				for _, r := range rules {
					fmt.Printf("action=%s min_role=%s risk=%s\n", r.Action, r.MinRole, r.Risk)
				}
			})
		},
	}
	return cmd
}

func newPolicyProposeCmd() *cobra.Command {
	var unitID, title, description string
	var timeoutHours int
	cmd := &cobra.Command{
		Use:   "propose <text>",
		Short: "Translate free text into rules and open an approval request for them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := tenantContext()
			if err != nil {
				return err
			}
			if unitID == "" {
				return fmt.Errorf("--unit is required")
			}
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			ctx := cmd.Context()

			rules, err := d.translator.Translate(ctx, args[0])
			if err != nil {
				return err
			}
			payload, err := json.Marshal(rules)
			if err != nil {
				return fmt.Errorf("encoding translated rules: %w", err)
			}

			cfg, err := d.govconf.Get(ctx, tc.TenantID)
			if err != nil {
				return fmt.Errorf("loading governance config: %w", err)
			}
			if !cmd.Flags().Changed("timeout-hours") {
				timeoutHours = cfg.TimeoutHours
			}

			req, err := d.approvals.Create(ctx, approval.CreateParams{
				TenantID:          tc.TenantID,
				Kind:              approval.KindPolicy,
				Target:            unitID,
				Scope:             approval.Scope{TeamID: &unitID},
				UnitID:            unitID,
				Title:             title,
				Description:       description,
				Payload:           payload,
				Risk:              metapolicy.RiskMedium,
				Requestor:         tc.PrincipalID,
				Mode:              cfg.ApprovalMode,
				RequiredApprovals: cfg.MinApprovers,
				TimeoutHours:      timeoutHours,
			})
			if err != nil {
				return err
			}
			return printResult(req, func() {
				fmt.Printf("opened approval request %s (%d rule(s))\n", req.ID, len(rules))
			})
		},
	}
	cmd.Flags().StringVar(&unitID, "unit", "", "unit id this policy change applies to (required)")
	cmd.Flags().StringVar(&title, "title", "policy change", "request title")
	cmd.Flags().StringVar(&description, "description", "", "request description")
	cmd.Flags().IntVar(&timeoutHours, "timeout-hours", 0, "override the tenant's default timeout")
	return cmd
}
