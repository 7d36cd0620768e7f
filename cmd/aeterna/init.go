package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kikokikok/aeterna-sub000/pkg/govconfig"
	"github.com/kikokikok/aeterna-sub000/pkg/tenant"
)

type initResult struct {
	TenantID  string `json:"tenant_id"`
	CompanyID string `json:"company_id"`
	Template  string `json:"template"`
}

// newInitCmd bootstraps a new tenant: a root company unit and the
// "standard" governance template applied as its default config.
func newInitCmd() *cobra.Command {
	var companyName, template string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Bootstrap a new tenant's root unit and default governance config",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := tenantContext()
			if err != nil {
				return err
			}
			if companyName == "" {
				return fmt.Errorf("--company is required")
			}
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			ctx := cmd.Context()

			company, err := d.tenants.CreateUnit(ctx, tc, companyName, tenant.Company, nil)
			if err != nil {
				return fmt.Errorf("creating root unit: %w", err)
			}

			t, err := govconfig.FindTemplate(template)
			if err != nil {
				return err
			}
			cfg := govconfig.Config{
				TenantID:     tc.TenantID,
				ApprovalMode: t.ApprovalMode,
				MinApprovers: t.MinApprovers,
				TimeoutHours: t.TimeoutHours,
				AutoApprove:  t.AutoApprove,
			}
			if err := d.govconf.Upsert(ctx, cfg); err != nil {
				return fmt.Errorf("saving default config: %w", err)
			}

			res := initResult{TenantID: tc.TenantID, CompanyID: company.ID, Template: template}
			return printResult(res, func() {
				fmt.Printf("initialized tenant %s: root unit %s, template=%s\n", res.TenantID, res.CompanyID, res.Template)
			})
		},
	}
	cmd.Flags().StringVar(&companyName, "company", "", "root company unit name (required)")
	cmd.Flags().StringVar(&template, "template", "standard", "standard|strict|permissive")
	return cmd
}
