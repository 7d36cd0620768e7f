package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	_ "github.com/mattn/go-sqlite3"

	gstore "github.com/kikokikok/aeterna-sub000/internal/store"
	"github.com/kikokikok/aeterna-sub000/pkg/lock"
	"github.com/kikokikok/aeterna-sub000/pkg/tenant"
)

func newTestStore(t *testing.T) *gstore.Store {
	t.Helper()
	db, err := gstore.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate("../../migrations"); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return db
}

func newTestLock(t *testing.T) *lock.Service {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return lock.NewService(rdb, nil)
}

func TestRunJobForcedFailureSentinel(t *testing.T) {
	db := newTestStore(t)
	s := New(Config{DB: db, Units: tenant.NewService(tenant.NewStore(db.DB))})

	called := false
	err := s.RunJob(context.Background(), "quick_drift_scan_TRIGGER_FAILURE", "all", func(context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected forced failure error")
	}
	if called {
		t.Fatal("job body must not run when the sentinel fires")
	}
}

func TestRunJobDedupSkipsSecondInvocationWithinWindow(t *testing.T) {
	db := newTestStore(t)
	s := New(Config{
		DB:        db,
		Units:     tenant.NewService(tenant.NewStore(db.DB)),
		Lock:      newTestLock(t),
		JobConfig: JobConfig{LockTTLSeconds: 60, JobTimeoutSeconds: 5, DeduplicationWindowSeconds: 3600},
	})

	var runs int32
	job := func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}

	if err := s.RunJob(context.Background(), "weekly_report", "all", job); err != nil {
		t.Fatalf("first run_job: %v", err)
	}
	if err := s.RunJob(context.Background(), "weekly_report", "all", job); err != nil {
		t.Fatalf("second run_job: %v", err)
	}

	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("job ran %d times, want 1 (second call should be deduped)", got)
	}
}

func TestRunJobConcurrentLockExcludesSecondRunner(t *testing.T) {
	db := newTestStore(t)
	lockSvc := newTestLock(t)
	s := New(Config{
		DB:        db,
		Units:     tenant.NewService(tenant.NewStore(db.DB)),
		Lock:      lockSvc,
		JobConfig: JobConfig{LockTTLSeconds: 60, JobTimeoutSeconds: 5, DeduplicationWindowSeconds: 0},
	})

	release := make(chan struct{})
	started := make(chan struct{})
	slow := func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}

	var wg sync.WaitGroup
	var fastRan int32
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.RunJob(context.Background(), "quick_drift_scan", "all", slow)
	}()

	<-started
	if err := s.RunJob(context.Background(), "quick_drift_scan", "all", func(context.Context) error {
		atomic.AddInt32(&fastRan, 1)
		return nil
	}); err != nil {
		t.Fatalf("second run_job: %v", err)
	}
	close(release)
	wg.Wait()

	if atomic.LoadInt32(&fastRan) != 0 {
		t.Fatal("second runner must be excluded by the held lock, not execute")
	}
}

func TestExecuteJobRecordsTimeout(t *testing.T) {
	db := newTestStore(t)
	s := New(Config{
		DB:        db,
		Units:     tenant.NewService(tenant.NewStore(db.DB)),
		JobConfig: JobConfig{JobTimeoutSeconds: 0},
	})
	// New replaces an all-zero JobConfig with the defaults, so the timeout
	// is set here directly: one second, against a job that waits two.
	s.jobConfig.JobTimeoutSeconds = 1

	err := s.executeJob(context.Background(), "slow_job", "all", func(ctx context.Context) error {
		select {
		case <-time.After(2 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestRunBatchDriftScanOnlyTargetsProjectUnits(t *testing.T) {
	db := newTestStore(t)
	units := tenant.NewService(tenant.NewStore(db.DB))
	ctx := context.Background()
	tctx := tenant.Context{TenantID: "acme"}

	company, err := units.CreateUnit(ctx, tctx, "Acme", tenant.Company, nil)
	if err != nil {
		t.Fatal(err)
	}
	org, err := units.CreateUnit(ctx, tctx, "Eng", tenant.Organization, &company.ID)
	if err != nil {
		t.Fatal(err)
	}
	team, err := units.CreateUnit(ctx, tctx, "Platform", tenant.Team, &org.ID)
	if err != nil {
		t.Fatal(err)
	}
	project, err := units.CreateUnit(ctx, tctx, "Core", tenant.Project, &team.ID)
	if err != nil {
		t.Fatal(err)
	}

	checker := &recordingDriftChecker{}
	s := New(Config{DB: db, Units: units, Drift: checker})

	if err := s.runBatchDriftScan(ctx); err != nil {
		t.Fatalf("run_batch_drift_scan: %v", err)
	}
	if len(checker.calls) != 1 || checker.calls[0] != project.ID {
		t.Fatalf("drift checker calls = %v, want exactly [%s]", checker.calls, project.ID)
	}
}

type recordingDriftChecker struct {
	calls []string
}

func (r *recordingDriftChecker) CheckDrift(_ context.Context, _ tenant.Context, projectID string) error {
	r.calls = append(r.calls, projectID)
	return nil
}

func TestRunDLQProcessingRespectsRetryBudget(t *testing.T) {
	db := newTestStore(t)
	units := tenant.NewService(tenant.NewStore(db.DB))
	ctx := context.Background()
	tctx := tenant.Context{TenantID: "acme"}

	if _, err := units.CreateUnit(ctx, tctx, "Acme", tenant.Company, nil); err != nil {
		t.Fatal(err)
	}

	records := newRecordStore(db.DB)
	now := time.Now().UTC()

	if err := records.enqueueDeadLetterEvent(ctx, DeadLetterEvent{
		ID: "dlq-retry", TenantID: "acme", Topic: "t", Payload: []byte("{}"),
		RetryCount: 0, MaxRetries: 2, Status: "DeadLettered", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}
	if err := records.enqueueDeadLetterEvent(ctx, DeadLetterEvent{
		ID: "dlq-exhausted", TenantID: "acme", Topic: "t", Payload: []byte("{}"),
		RetryCount: 5, MaxRetries: 2, Status: "DeadLettered", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}

	s := New(Config{DB: db, Units: units, Publisher: alwaysSucceedsPublisher{}})
	if err := s.runDLQProcessing(ctx); err != nil {
		t.Fatalf("run_dlq_processing: %v", err)
	}

	events, err := records.deadLetterEvents(ctx, "acme", 10)
	if err != nil {
		t.Fatal(err)
	}
	statuses := map[string]string{}
	for _, e := range events {
		statuses[e.ID] = e.Status
	}
	if statuses["dlq-retry"] != "" {
		t.Fatalf("retryable event should have left the pending set after being Published, got %q", statuses["dlq-retry"])
	}

	row := db.DB.QueryRowContext(ctx, `SELECT status FROM dead_letter_events WHERE id = ?`, "dlq-exhausted")
	var status string
	if err := row.Scan(&status); err != nil {
		t.Fatal(err)
	}
	if status != "PermanentlyFailed" {
		t.Fatalf("exhausted event status = %q, want PermanentlyFailed", status)
	}
}

type alwaysSucceedsPublisher struct{}

func (alwaysSucceedsPublisher) Publish(context.Context, []byte) error { return nil }

func TestAggregateWeeklyReportsOnlyCountsRecentResults(t *testing.T) {
	db := newTestStore(t)
	units := tenant.NewService(tenant.NewStore(db.DB))
	ctx := context.Background()
	tctx := tenant.Context{TenantID: "acme"}

	company, err := units.CreateUnit(ctx, tctx, "Acme", tenant.Company, nil)
	if err != nil {
		t.Fatal(err)
	}
	org, err := units.CreateUnit(ctx, tctx, "Eng", tenant.Organization, &company.ID)
	if err != nil {
		t.Fatal(err)
	}
	team, err := units.CreateUnit(ctx, tctx, "Platform", tenant.Team, &org.ID)
	if err != nil {
		t.Fatal(err)
	}
	recent, err := units.CreateUnit(ctx, tctx, "Recent", tenant.Project, &team.ID)
	if err != nil {
		t.Fatal(err)
	}
	stale, err := units.CreateUnit(ctx, tctx, "Stale", tenant.Project, &team.ID)
	if err != nil {
		t.Fatal(err)
	}

	records := newRecordStore(db.DB)
	if err := records.storeDriftResult(ctx, DriftResult{
		ID: "dr1", TenantID: "acme", ProjectID: recent.ID, DriftScore: 0.5,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	if err := records.storeDriftResult(ctx, DriftResult{
		ID: "dr2", TenantID: "acme", ProjectID: stale.ID, DriftScore: 1.0,
		CreatedAt: time.Now().UTC().Add(-14 * 24 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	s := New(Config{DB: db, Units: units})
	reports, err := s.aggregateWeeklyReports(ctx)
	if err != nil {
		t.Fatalf("aggregate_weekly_reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	if reports[0].ProjectCount != 1 {
		t.Fatalf("project_count = %d, want 1 (stale result excluded)", reports[0].ProjectCount)
	}
	if reports[0].AverageDrift != 0.5 {
		t.Fatalf("average_drift = %v, want 0.5", reports[0].AverageDrift)
	}
}
