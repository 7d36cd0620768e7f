package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
	"github.com/kikokikok/aeterna-sub000/pkg/approval"
	"github.com/kikokikok/aeterna-sub000/pkg/govconfig"
	"github.com/kikokikok/aeterna-sub000/pkg/tenant"
)

func newGovernCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "govern",
		Short: "Inspect and act on the approval queue (spec.md §4.6/§6)",
	}
	cmd.AddCommand(
		newGovernStatusCmd(),
		newGovernPendingCmd(),
		newGovernApproveCmd(),
		newGovernRejectCmd(),
		newGovernConfigureCmd(),
		newGovernRolesCmd(),
		newGovernAuditCmd(),
	)
	return cmd
}

// --- status ---

type governStatusMetrics struct {
	PendingRequests      int `json:"pending_requests"`
	ApprovedToday        int `json:"approved_today"`
	RejectedToday        int `json:"rejected_today"`
	Escalated            int `json:"escalated"`
	YourPendingApprovals int `json:"your_pending_approvals"`
}

type governStatusConfig struct {
	ApprovalMode       string `json:"approval_mode"`
	MinApprovers       int    `json:"min_approvers"`
	TimeoutHours       int    `json:"timeout_hours"`
	AutoApproveEnabled bool   `json:"auto_approve_enabled"`
}

type governStatusResult struct {
	Context struct {
		TenantID string `json:"tenant_id"`
		UserID   string `json:"user_id"`
	} `json:"context"`
	Config  governStatusConfig  `json:"config"`
	Metrics governStatusMetrics `json:"metrics"`
}

func newGovernStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize pending approvals and today's decision counts",
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
			ctx := cmd.Context()

			cfg, err := d.govconf.Get(ctx, tc.TenantID)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			startOfDay := time.Now().UTC().Truncate(24 * time.Hour)

			pending, err := d.approvals.ListPendingRequests(ctx, tc.TenantID, approval.ListFilters{})
			if err != nil {
				return fmt.Errorf("listing pending requests: %w", err)
			}
			approvedToday, err := d.approvals.CountByStatusSince(ctx, tc.TenantID, approval.StatusApproved, startOfDay)
			if err != nil {
				return fmt.Errorf("counting approved: %w", err)
			}
			rejectedToday, err := d.approvals.CountByStatusSince(ctx, tc.TenantID, approval.StatusRejected, startOfDay)
			if err != nil {
				return fmt.Errorf("counting rejected: %w", err)
			}
			escalated, err := d.approvals.CountByStatusSince(ctx, tc.TenantID, approval.StatusEscalated, time.Time{})
			if err != nil {
				return fmt.Errorf("counting escalated: %w", err)
			}
			yours, err := countYourPendingApprovals(ctx, d, tc, pending)
			if err != nil {
				return err
			}

			res := governStatusResult{
				Config: governStatusConfig{
					ApprovalMode:       string(cfg.ApprovalMode),
					MinApprovers:       cfg.MinApprovers,
					TimeoutHours:       cfg.TimeoutHours,
					AutoApproveEnabled: cfg.AutoApprove,
				},
				Metrics: governStatusMetrics{
					PendingRequests:      len(pending),
					ApprovedToday:        approvedToday,
					RejectedToday:        rejectedToday,
					Escalated:            escalated,
					YourPendingApprovals: yours,
				},
			}
			res.Context.TenantID = tc.TenantID
			res.Context.UserID = tc.PrincipalID

			return printResult(res, func() {
				fmt.Printf("tenant=%s user=%s\n", tc.TenantID, tc.PrincipalID)
				fmt.Printf("config:  mode=%s min_approvers=%d timeout=%dh auto_approve=%v\n",
					res.Config.ApprovalMode, res.Config.MinApprovers, res.Config.TimeoutHours, res.Config.AutoApproveEnabled)
				fmt.Printf("metrics: pending=%d approved_today=%d rejected_today=%d escalated=%d yours=%d\n",
					res.Metrics.PendingRequests, res.Metrics.ApprovedToday, res.Metrics.RejectedToday,
					res.Metrics.Escalated, res.Metrics.YourPendingApprovals)
			})
		},
	}
}

// countYourPendingApprovals counts requests in pending not yet decided by
// the calling user — the set of requests waiting on their vote.
func countYourPendingApprovals(ctx context.Context, d *deps, tc tenant.Context, pending []approval.Request) (int, error) {
	count := 0
	for _, req := range pending {
		decisions, err := d.approvals.Decisions(ctx, req.ID)
		if err != nil {
			return 0, fmt.Errorf("loading decisions for %s: %w", req.ID, err)
		}
		decided := false
		for _, dec := range decisions {
			if dec.Approver == tc.PrincipalID {
				decided = true
				break
			}
		}
		if !decided {
			count++
		}
	}
	return count, nil
}

// --- pending ---

type governPendingRequest struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	Title             string `json:"title"`
	Requestor         string `json:"requestor"`
	Layer             string `json:"layer"`
	CreatedAt         string `json:"created_at"`
	Approvals         int    `json:"approvals"`
	RequiredApprovals int    `json:"required_approvals"`
	Status            string `json:"status"`
}

type governPendingResult struct {
	Total    int                    `json:"total"`
	Requests []governPendingRequest `json:"requests"`
}

func newGovernPendingCmd() *cobra.Command {
	var reqType, layer, requestor string
	var mine bool

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending approval requests",
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
			ctx := cmd.Context()

			filters := approval.ListFilters{}
			if reqType != "" && reqType != "all" {
				k := approval.Kind(reqType)
				filters.Kind = &k
			}
			if requestor != "" {
				filters.Requestor = &requestor
			}

			requests, err := d.approvals.ListPendingRequests(ctx, tc.TenantID, filters)
			if err != nil {
				return fmt.Errorf("listing pending requests: %w", err)
			}

			out := make([]governPendingRequest, 0, len(requests))
			for _, req := range requests {
				reqLayer := scopeLayer(req.Scope)
				if layer != "" && reqLayer != layer {
					continue
				}
				if mine {
					decisions, err := d.approvals.Decisions(ctx, req.ID)
					if err != nil {
						return fmt.Errorf("loading decisions for %s: %w", req.ID, err)
					}
					decided := false
					for _, dec := range decisions {
						if dec.Approver == tc.PrincipalID {
							decided = true
							break
						}
					}
					if decided {
						continue
					}
				}
				out = append(out, governPendingRequest{
					ID:                req.ID,
					Type:              string(req.Kind),
					Title:             req.Title,
					Requestor:         req.Requestor,
					Layer:             reqLayer,
					CreatedAt:         req.CreatedAt.Format(time.RFC3339),
					Approvals:         req.CurrentApprovals,
					RequiredApprovals: req.RequiredApprovals,
					Status:            string(req.Status),
				})
			}

			res := governPendingResult{Total: len(out), Requests: out}
			return printResult(res, func() {
				fmt.Printf("%d pending request(s)\n", res.Total)
				for _, r := range res.Requests {
					fmt.Printf("  %s  [%s/%s]  %d/%d  %s\n", r.ID, r.Type, r.Layer, r.Approvals, r.RequiredApprovals, r.Title)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&reqType, "request-type", "t", "all", "policy|knowledge|memory|all")
	cmd.Flags().StringVar(&layer, "layer", "", "company|organization|team|project")
	cmd.Flags().StringVar(&requestor, "requestor", "", "filter by requestor id")
	cmd.Flags().BoolVar(&mine, "mine", false, "only requests awaiting your decision")
	return cmd
}

// scopeLayer returns the name of the exactly-one Scope field that is set.
func scopeLayer(s approval.Scope) string {
	switch {
	case s.ProjectID != nil:
		return "project"
	case s.TeamID != nil:
		return "team"
	case s.OrgID != nil:
		return "organization"
	case s.CompanyID != nil:
		return "company"
	default:
		return ""
	}
}

// --- approve / reject ---

type governDecisionResult struct {
	Success           bool   `json:"success"`
	RequestID         string `json:"request_id"`
	Action            string `json:"action"`
	Comment           string `json:"comment,omitempty"`
	NewApprovalCount  int    `json:"new_approval_count"`
	RequiredApprovals int    `json:"required_approvals"`
	FullyApproved     bool   `json:"fully_approved"`
}

func newGovernApproveCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Record an approval decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGovernDecision(cmd, args[0], approval.VerdictApprove, comment)
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "optional comment")
	return cmd
}

func newGovernRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Record a rejection decision (requires --reason)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGovernDecision(cmd, args[0], approval.VerdictReject, reason)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "required: reason for rejection")
	return cmd
}

func runGovernDecision(cmd *cobra.Command, requestID string, verdict approval.Verdict, comment string) error {
	tc, err := tenantContext()
	if err != nil {
		return err
	}
	d, err := newDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	var commentPtr *string
	if comment != "" {
		commentPtr = &comment
	}

	updated, err := d.approvals.AddDecision(cmd.Context(), tc.TenantID, requestID, tc.PrincipalID, verdict, commentPtr)
	if err != nil {
		return err
	}

	action := "approved"
	if verdict == approval.VerdictReject {
		action = "rejected"
	}
	res := governDecisionResult{
		Success:           true,
		RequestID:         requestID,
		Action:            action,
		Comment:           comment,
		NewApprovalCount:  updated.CurrentApprovals,
		RequiredApprovals: updated.RequiredApprovals,
		FullyApproved:     updated.Status == approval.StatusApproved,
	}
	return printResult(res, func() {
		fmt.Printf("%s: %s (%d/%d)\n", res.Action, res.RequestID, res.NewApprovalCount, res.RequiredApprovals)
	})
}

// --- configure ---

type governConfigResult struct {
	TenantID          string `json:"tenant_id"`
	ApprovalMode      string `json:"approval_mode"`
	MinApprovers      int    `json:"min_approvers"`
	TimeoutHours      int    `json:"timeout_hours"`
	AutoApprove       bool   `json:"auto_approve"`
	EscalationContact string `json:"escalation_contact,omitempty"`
}

func newGovernConfigureCmd() *cobra.Command {
	var template, mode, contact string
	var minApprovers, timeoutHours int
	var autoApprove, show, listTemplates bool

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "View or set a tenant's default approval configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listTemplates {
				return printResult(govconfig.Templates, func() {
					for _, t := range govconfig.Templates {
						fmt.Printf("%-12s mode=%-10s min=%d timeout=%dh auto_approve=%v\n",
							t.Name, t.ApprovalMode, t.MinApprovers, t.TimeoutHours, t.AutoApprove)
					}
				})
			}

			tc, err := tenantContext()
			if err != nil {
				return err
			}
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			ctx := cmd.Context()

			noChange := template == "" && mode == "" && !cmd.Flags().Changed("min-approvers") &&
				!cmd.Flags().Changed("timeout-hours") && !cmd.Flags().Changed("auto-approve") && contact == ""

			if show || noChange {
				cfg, err := d.govconf.Get(ctx, tc.TenantID)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				return printConfig(cfg)
			}

			cfg, err := d.govconf.Get(ctx, tc.TenantID)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg.TenantID = tc.TenantID

			if template != "" {
				t, err := govconfig.FindTemplate(template)
				if err != nil {
					return err
				}
				cfg.ApprovalMode = t.ApprovalMode
				cfg.MinApprovers = t.MinApprovers
				cfg.TimeoutHours = t.TimeoutHours
				cfg.AutoApprove = t.AutoApprove
			}
			if mode != "" {
				cfg.ApprovalMode = approval.Mode(mode)
			}
			if cmd.Flags().Changed("min-approvers") {
				cfg.MinApprovers = minApprovers
			}
			if cmd.Flags().Changed("timeout-hours") {
				cfg.TimeoutHours = timeoutHours
			}
			if cmd.Flags().Changed("auto-approve") {
				cfg.AutoApprove = autoApprove
			}
			if contact != "" {
				cfg.EscalationContact = contact
			}

			if err := d.govconf.Upsert(ctx, cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			return printConfig(cfg)
		},
	}
	cmd.Flags().StringVar(&template, "template", "", "standard|strict|permissive")
	cmd.Flags().StringVar(&mode, "approval-mode", "", "single|quorum|unanimous")
	cmd.Flags().IntVar(&minApprovers, "min-approvers", 0, "minimum approvers for quorum mode")
	cmd.Flags().IntVar(&timeoutHours, "timeout-hours", 0, "request timeout in hours")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "auto-approve new requests")
	cmd.Flags().StringVar(&contact, "escalation-contact", "", "escalation contact for this tenant")
	cmd.Flags().BoolVar(&show, "show", false, "print current config without changing it")
	cmd.Flags().BoolVar(&listTemplates, "list-templates", false, "print the three governance templates")
	return cmd
}

func printConfig(cfg govconfig.Config) error {
	res := governConfigResult{
		TenantID:          cfg.TenantID,
		ApprovalMode:      string(cfg.ApprovalMode),
		MinApprovers:      cfg.MinApprovers,
		TimeoutHours:      cfg.TimeoutHours,
		AutoApprove:       cfg.AutoApprove,
		EscalationContact: cfg.EscalationContact,
	}
	return printResult(res, func() {
		fmt.Printf("tenant=%s mode=%s min_approvers=%d timeout=%dh auto_approve=%v contact=%q\n",
			res.TenantID, res.ApprovalMode, res.MinApprovers, res.TimeoutHours, res.AutoApprove, res.EscalationContact)
	})
}

// --- roles ---

func newGovernRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the meta-governance role ordering",
		RunE: func(cmd *cobra.Command, args []string) error {
			levels := []string{"viewer", "developer", "techlead", "architect", "admin"}
			return printResult(levels, func() {
				fmt.Println(strings.Join(levels, " < "))
			})
		},
	}
}

// --- audit ---

func newGovernAuditCmd() *cobra.Command {
	var action, since, actor, targetType, export, output string
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect recorded governance audit entries",
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

			sinceTime, err := parseSinceWindow(since)
			if err != nil {
				return err
			}

			filter := govern.AuditFilter{
				ActorID:    actor,
				TargetKind: targetType,
				Limit:      limit,
				Since:      sinceTime,
			}
			if action != "" && action != "all" {
				filter.Action = "approval." + action
			}

			records, err := d.audit.Query(cmd.Context(), tc.TenantID, filter)
			if err != nil {
				return fmt.Errorf("querying audit log: %w", err)
			}

			switch export {
			case "csv":
				return exportAuditCSV(records, output)
			case "json":
				return exportAuditJSON(records, output)
			default:
				return printResult(records, func() {
					for _, r := range records {
						fmt.Printf("%s  %s  %s  %s/%s\n", r.CreatedAt.Format(time.RFC3339), r.Action, r.ActorID, r.TargetKind, r.TargetID)
					}
				})
			}
		},
	}
	cmd.Flags().StringVar(&action, "action", "all", "all|approve|reject|escalate|expire")
	cmd.Flags().StringVar(&since, "since", "24h", "1h|24h|7d|30d|90d")
	cmd.Flags().StringVar(&actor, "actor", "", "filter by actor id")
	cmd.Flags().StringVar(&targetType, "target-type", "", "filter by target kind")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records")
	cmd.Flags().StringVar(&export, "export", "none", "json|csv|none")
	cmd.Flags().StringVar(&output, "output", "", "output file path (stdout if empty)")
	return cmd
}

func parseSinceWindow(w string) (time.Time, error) {
	now := time.Now().UTC()
	switch w {
	case "1h":
		return now.Add(-1 * time.Hour), nil
	case "24h", "":
		return now.Add(-24 * time.Hour), nil
	case "7d":
		return now.Add(-7 * 24 * time.Hour), nil
	case "30d":
		return now.Add(-30 * 24 * time.Hour), nil
	case "90d":
		return now.Add(-90 * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("invalid --since %q (want 1h|24h|7d|30d|90d)", w)
	}
}

func exportAuditCSV(records []govern.AuditRecord, output string) error {
	w := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		cw := csv.NewWriter(f)
		return writeAuditCSV(cw, records)
	}
	cw := csv.NewWriter(w)
	return writeAuditCSV(cw, records)
}

func writeAuditCSV(cw *csv.Writer, records []govern.AuditRecord) error {
	defer cw.Flush()
	if err := cw.Write([]string{"id", "timestamp", "action", "actor", "target_type", "target_id", "details"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Action, r.ActorID, r.TargetKind, r.TargetID, string(r.Details),
		}); err != nil {
			return err
		}
	}
	return cw.Error()
}

func exportAuditJSON(records []govern.AuditRecord, output string) error {
	if output == "" {
		return printResult(records, nil)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
