// Package scheduler implements the Governance Scheduler (C4): a single
// background loop ticking four periodic jobs (quick drift scan, semantic
// analysis, weekly report, DLQ processing), each run through run_job's
// dedup-check -> lock -> execute-with-timeout -> status-record lifecycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kikokikok/aeterna-sub000/internal/store"
	"github.com/kikokikok/aeterna-sub000/internal/telemetry"
	"github.com/kikokikok/aeterna-sub000/pkg/llmhook"
	"github.com/kikokikok/aeterna-sub000/pkg/lock"
	"github.com/kikokikok/aeterna-sub000/pkg/tenant"
)

// Config wires a Scheduler's dependencies. Hooks left nil fall back to a
// no-op implementation so a partially-wired Scheduler still runs.
type Config struct {
	DB             *store.Store
	Lock           *lock.Service
	Units          *tenant.Service
	JobConfig      JobConfig
	DeploymentMode string

	QuickScanInterval    time.Duration
	SemanticScanInterval time.Duration
	ReportInterval       time.Duration
	DLQInterval          time.Duration

	Drift     DriftChecker
	Policies  PolicyProvider
	Knowledge KnowledgeProvider
	LLM       llmhook.AnalyzeDrift
	Publisher EventPublisher

	Logger *slog.Logger
}

// Scheduler runs the four periodic governance jobs.
type Scheduler struct {
	db        *store.Store
	records   *recordStore
	lock      *lock.Service
	units     *tenant.Service
	jobConfig JobConfig
	mode      string

	quickScanInterval    time.Duration
	semanticScanInterval time.Duration
	reportInterval       time.Duration
	dlqInterval          time.Duration

	drift     DriftChecker
	policies  PolicyProvider
	knowledge KnowledgeProvider
	llm       llmhook.AnalyzeDrift
	publisher EventPublisher

	logger *slog.Logger
}

// New constructs a Scheduler from cfg.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		db:                   cfg.DB,
		records:              newRecordStore(cfg.DB.DB),
		lock:                 cfg.Lock,
		units:                cfg.Units,
		jobConfig:            cfg.JobConfig,
		mode:                 cfg.DeploymentMode,
		quickScanInterval:    cfg.QuickScanInterval,
		semanticScanInterval: cfg.SemanticScanInterval,
		reportInterval:       cfg.ReportInterval,
		dlqInterval:          cfg.DLQInterval,
		drift:                cfg.Drift,
		policies:             cfg.Policies,
		knowledge:            cfg.Knowledge,
		llm:                  cfg.LLM,
		publisher:            cfg.Publisher,
		logger:               cfg.Logger,
	}
	if s.jobConfig == (JobConfig{}) {
		s.jobConfig = DefaultJobConfig()
	}
	if s.drift == nil {
		s.drift = NoopDriftChecker{}
	}
	if s.policies == nil {
		s.policies = NoopPolicyProvider{}
	}
	if s.knowledge == nil {
		s.knowledge = NoopKnowledgeProvider{}
	}
	if s.llm == nil {
		s.llm = llmhook.NoopHook{}
	}
	if s.publisher == nil {
		s.publisher = NoopPublisher{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.dlqInterval == 0 {
		s.dlqInterval = 5 * time.Minute
	}
	return s
}

// Start runs the tick loop until ctx is cancelled. In remote mode it returns
// immediately without scheduling anything (spec.md §4.4).
func (s *Scheduler) Start(ctx context.Context) {
	if s.mode == ModeRemote {
		s.logger.Info("governance scheduler disabled in remote mode")
		return
	}

	quick := time.NewTicker(s.quickScanInterval)
	defer quick.Stop()
	semantic := time.NewTicker(s.semanticScanInterval)
	defer semantic.Stop()
	report := time.NewTicker(s.reportInterval)
	defer report.Stop()
	dlq := time.NewTicker(s.dlqInterval)
	defer dlq.Stop()

	s.logger.Info("governance scheduler started", "mode", s.mode)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("governance scheduler stopped")
			return
		case <-quick.C:
			_ = s.RunJob(ctx, "quick_drift_scan", "all", s.runBatchDriftScan)
		case <-semantic.C:
			if s.mode != ModeHybrid {
				_ = s.RunJob(ctx, "semantic_analysis", "all", s.runSemanticAnalysis)
			} else {
				s.logger.Debug("skipping local semantic analysis in hybrid mode")
			}
		case <-report.C:
			if s.mode == ModeLocal {
				_ = s.RunJob(ctx, "weekly_report", "all", s.runWeeklyReport)
			}
		case <-dlq.C:
			_ = s.RunJob(ctx, "dlq_processing", "all", s.runDLQProcessing)
		}
	}
}

// RunJob is the full job lifecycle spec.md §4.4 describes: forced-failure
// sentinel, dedup check, lock acquisition, timeout-bound execution, status
// recording.
func (s *Scheduler) RunJob(ctx context.Context, name, tenantID string, job func(context.Context) error) error {
	if strings.Contains(name, triggerFailureSentinel) {
		return fmt.Errorf("%s: forced job failure", triggerFailureSentinel)
	}

	if s.lock == nil {
		return s.executeJob(ctx, name, tenantID, job)
	}

	if s.jobConfig.DeduplicationWindowSeconds > 0 {
		recent, err := s.lock.CheckJobRecentlyCompleted(ctx, name)
		if err != nil {
			s.logger.Warn("dedup check failed, proceeding anyway", "job", name, "error", err)
		} else if recent {
			s.logger.Info("job skipped", "job", name, "reason", "recently_completed")
			telemetry.SchedulerJobsTotal.WithLabelValues(name, "skipped").Inc()
			return nil
		}
	}

	lockKey := s.jobConfig.LockKey(name)
	token, acquired, err := s.lock.AcquireLock(ctx, lockKey, time.Duration(s.jobConfig.LockTTLSeconds)*time.Second)
	switch {
	case err != nil:
		s.logger.Warn("failed to acquire lock, running without coordination", "job", name, "error", err)
		return s.executeJob(ctx, name, tenantID, job)
	case !acquired:
		s.logger.Info("job skipped", "job", name, "reason", "already_running")
		telemetry.SchedulerJobsTotal.WithLabelValues(name, "skipped").Inc()
		return nil
	}

	result := s.executeJob(ctx, name, tenantID, job)

	if releaseErr := s.lock.ReleaseLock(ctx, lockKey, token); releaseErr != nil {
		s.logger.Warn("failed to release lock, will expire naturally", "job", name, "error", releaseErr)
	}

	if result == nil && s.jobConfig.DeduplicationWindowSeconds > 0 {
		window := time.Duration(s.jobConfig.DeduplicationWindowSeconds) * time.Second
		if err := s.lock.RecordJobCompletion(ctx, name, window); err != nil {
			s.logger.Warn("failed to record job completion for dedup", "job", name, "error", err)
		}
	}

	return result
}

// executeJob runs job under a job_timeout bound and records the
// running -> terminal status transition.
func (s *Scheduler) executeJob(ctx context.Context, name, tenantID string, job func(context.Context) error) error {
	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	s.logger.Info("starting job", "job", name)

	if err := s.records.recordJobStatus(ctx, runID, name, tenantID, "running", nil, startedAt, nil); err != nil {
		s.logger.Warn("failed to record job status", "job", name, "error", err)
	}

	timeout := time.Duration(s.jobConfig.JobTimeoutSeconds) * time.Second
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- job(jobCtx) }()

	var jobErr error
	select {
	case jobErr = <-done:
	case <-jobCtx.Done():
		jobErr = jobCtx.Err()
	}
	telemetry.SchedulerJobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	finishedAt := time.Now().UTC()

	if errors.Is(jobErr, context.DeadlineExceeded) {
		message := fmt.Sprintf("job exceeded %d second timeout", s.jobConfig.JobTimeoutSeconds)
		s.logger.Error("job timed out", "job", name, "timeout_seconds", s.jobConfig.JobTimeoutSeconds)
		_ = s.records.recordJobStatus(ctx, runID, name, tenantID, "timeout", &message, startedAt, &finishedAt)
		telemetry.SchedulerJobsTotal.WithLabelValues(name, "timeout").Inc()
		return fmt.Errorf("job %q timed out after %d seconds", name, s.jobConfig.JobTimeoutSeconds)
	}
	if jobErr != nil {
		message := jobErr.Error()
		_ = s.records.recordJobStatus(ctx, runID, name, tenantID, "failed", &message, startedAt, &finishedAt)
		telemetry.SchedulerJobsTotal.WithLabelValues(name, "failed").Inc()
		return jobErr
	}

	_ = s.records.recordJobStatus(ctx, runID, name, tenantID, "completed", nil, startedAt, &finishedAt)
	telemetry.SchedulerJobsTotal.WithLabelValues(name, "completed").Inc()
	return nil
}
