package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kikokikok/aeterna-sub000/pkg/llmhook"
	"github.com/kikokikok/aeterna-sub000/pkg/tenant"
)

// runBatchDriftScan builds a minimal context (project id, empty content)
// for every project-kind unit across every tenant and invokes the
// governance engine's drift-check hook.
func (s *Scheduler) runBatchDriftScan(ctx context.Context) error {
	s.logger.Info("starting batch drift scan")

	units, err := s.units.AllUnits(ctx)
	if err != nil {
		return fmt.Errorf("listing units: %w", err)
	}

	for _, u := range units {
		if u.Kind != tenant.Project {
			continue
		}
		tctx := tenant.Context{TenantID: u.TenantID}
		if err := s.drift.CheckDrift(ctx, tctx, u.ID); err != nil {
			s.logger.Warn("drift check failed", "project", u.ID, "error", err)
		}
	}
	return nil
}

// runSemanticAnalysis loads each project-kind unit's effective policies
// (skipping projects with none), concatenates its project-layer knowledge,
// hands the blob to the LLM hook, and persists the returned violations.
func (s *Scheduler) runSemanticAnalysis(ctx context.Context) error {
	s.logger.Info("starting daily semantic analysis job")

	units, err := s.units.AllUnits(ctx)
	if err != nil {
		return fmt.Errorf("listing units: %w", err)
	}

	for _, u := range units {
		if u.Kind != tenant.Project {
			continue
		}
		tctx := tenant.Context{TenantID: u.TenantID}

		policies, err := s.policies.EffectivePolicies(ctx, tctx, u.ID)
		if err != nil {
			return fmt.Errorf("fetching policies for %s: %w", u.ID, err)
		}
		if len(policies) == 0 {
			continue
		}

		content, err := s.knowledge.ProjectContent(ctx, tctx, u.ID)
		if err != nil {
			return fmt.Errorf("listing project content for %s: %w", u.ID, err)
		}
		if content == "" {
			continue
		}

		result, err := s.llm.AnalyzeDrift(ctx, content, policies)
		if err != nil {
			s.logger.Error("semantic analysis failed", "project", u.ID, "error", err)
			continue
		}

		manualReview := false
		for _, v := range result.Violations {
			if !v.Suppressed {
				manualReview = true
				break
			}
		}

		driftResult := DriftResult{
			ID:           uuid.NewString(),
			TenantID:     u.TenantID,
			ProjectID:    u.ID,
			DriftScore:   activeViolationRatio(result.Violations),
			Violations:   result.Violations,
			ManualReview: manualReview,
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.records.storeDriftResult(ctx, driftResult); err != nil {
			s.logger.Error("storing drift result failed", "project", u.ID, "error", err)
		}
	}
	return nil
}

// activeViolationRatio is the fraction of reported violations that are not
// suppressed, a 0..1 drift score.
func activeViolationRatio(violations []llmhook.Violation) float64 {
	if len(violations) == 0 {
		return 0
	}
	active := 0
	for _, v := range violations {
		if !v.Suppressed {
			active++
		}
	}
	return float64(active) / float64(len(violations))
}

// weeklyReport is the aggregate emitted once per organization unit.
type weeklyReport struct {
	OrgID                     string
	AverageDrift              float64
	ProjectCount              int
	ActiveViolationCount      int
	SuppressedViolationCount  int
	ManualReviewRequiredCount int
}

// runWeeklyReport aggregates each organization's descendant projects' most
// recent drift result (if within the last 7 days) and logs the summary.
func (s *Scheduler) runWeeklyReport(ctx context.Context) error {
	s.logger.Info("starting weekly governance report job")

	reports, err := s.aggregateWeeklyReports(ctx)
	if err != nil {
		return err
	}

	for _, report := range reports {
		s.logger.Info("weekly governance report",
			"org", report.OrgID,
			"average_drift", report.AverageDrift,
			"project_count", report.ProjectCount,
			"active_violations", report.ActiveViolationCount,
			"suppressed_violations", report.SuppressedViolationCount,
			"manual_review_required", report.ManualReviewRequiredCount,
		)
	}
	return nil
}

// aggregateWeeklyReports computes, but does not log, one weeklyReport per
// organization unit.
func (s *Scheduler) aggregateWeeklyReports(ctx context.Context) ([]weeklyReport, error) {
	units, err := s.units.AllUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing units: %w", err)
	}

	oneWeekAgo := time.Now().UTC().Add(-7 * 24 * time.Hour)
	var reports []weeklyReport

	for _, u := range units {
		if u.Kind != tenant.Organization {
			continue
		}
		tctx := tenant.Context{TenantID: u.TenantID}

		children, err := s.units.GetDescendants(ctx, tctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("listing descendants of %s: %w", u.ID, err)
		}

		report := weeklyReport{OrgID: u.ID}
		var totalDrift float64

		for _, child := range children {
			if child.Kind != tenant.Project {
				continue
			}
			result, err := s.records.latestDriftResult(ctx, child.TenantID, child.ID)
			if err != nil {
				return nil, fmt.Errorf("fetching drift result for %s: %w", child.ID, err)
			}
			if result == nil || result.CreatedAt.Before(oneWeekAgo) {
				continue
			}

			totalDrift += result.DriftScore
			report.ProjectCount++
			for _, v := range result.Violations {
				if v.Suppressed {
					report.SuppressedViolationCount++
				} else {
					report.ActiveViolationCount++
				}
			}
			if result.ManualReview {
				report.ManualReviewRequiredCount++
			}
		}

		if report.ProjectCount > 0 {
			report.AverageDrift = totalDrift / float64(report.ProjectCount)
		}

		reports = append(reports, report)
	}
	return reports, nil
}

// runDLQProcessing retries dead-lettered events below their retry budget
// (max_retries + 3) for every company-kind unit's tenant, up to 100 events
// each; beyond the budget an event is marked permanently failed.
func (s *Scheduler) runDLQProcessing(ctx context.Context) error {
	s.logger.Info("starting DLQ processing job")

	units, err := s.units.AllUnits(ctx)
	if err != nil {
		return fmt.Errorf("listing units: %w", err)
	}

	var processed, requeued, permanentlyFailed int

	for _, u := range units {
		if u.Kind != tenant.Company {
			continue
		}

		events, err := s.records.deadLetterEvents(ctx, u.TenantID, dlqBatchLimit)
		if err != nil {
			return fmt.Errorf("fetching dead letter events for %s: %w", u.TenantID, err)
		}
		if len(events) == 0 {
			continue
		}

		s.logger.Info("processing DLQ events", "count", len(events), "tenant", u.TenantID)

		for _, event := range events {
			if event.RetryCount >= event.MaxRetries+dlqRetryBudget {
				s.logger.Warn("event exceeded max DLQ retries, marking permanently failed", "event_id", event.ID)
				if err := s.records.updateEventStatus(ctx, event.ID, "PermanentlyFailed", event.RetryCount); err != nil {
					s.logger.Error("marking event permanently failed", "event_id", event.ID, "error", err)
				}
				permanentlyFailed++
				continue
			}

			newRetryCount := event.RetryCount + 1
			if err := s.publisher.Publish(ctx, event.Payload); err != nil {
				if err := s.records.updateEventStatus(ctx, event.ID, "DeadLettered", newRetryCount); err != nil {
					s.logger.Error("updating event status", "event_id", event.ID, "error", err)
				}
				requeued++
				continue
			}

			if err := s.records.updateEventStatus(ctx, event.ID, "Published", newRetryCount); err != nil {
				s.logger.Error("updating event status", "event_id", event.ID, "error", err)
			}
			processed++
		}
	}

	s.logger.Info("DLQ processing complete",
		"processed", processed, "requeued", requeued, "permanently_failed", permanentlyFailed)
	return nil
}
