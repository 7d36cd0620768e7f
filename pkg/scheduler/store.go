package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kikokikok/aeterna-sub000/internal/store"
	"github.com/kikokikok/aeterna-sub000/pkg/llmhook"
)

// recordStore persists job status transitions, drift results, and
// dead-letter events — the three tables the scheduler's jobs read or write.
type recordStore struct {
	dbtx store.DBTX
}

func newRecordStore(dbtx store.DBTX) *recordStore {
	return &recordStore{dbtx: dbtx}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// recordJobStatus upserts the status row for a single job run, keyed by id
// (one id per run, reused across its running -> terminal transition).
func (s *recordStore) recordJobStatus(ctx context.Context, id, jobName, tenantID, status string, message *string, startedAt time.Time, finishedAt *time.Time) error {
	var finished any
	if finishedAt != nil {
		finished = finishedAt.UTC().Format(time.RFC3339Nano)
	}
	var tenantCol any
	if tenantID != "" {
		tenantCol = tenantID
	}
	_, err := s.dbtx.ExecContext(ctx,
		`INSERT INTO job_status (id, job_name, tenant_id, status, message, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   message = excluded.message,
		   finished_at = excluded.finished_at`,
		id, jobName, tenantCol, status, message, startedAt.UTC().Format(time.RFC3339Nano), finished,
	)
	return err
}

// DriftResult is a single semantic-analysis outcome for a project.
type DriftResult struct {
	ID           string
	TenantID     string
	ProjectID    string
	DriftScore   float64
	Violations   []llmhook.Violation
	ManualReview bool
	CreatedAt    time.Time
}

func (s *recordStore) storeDriftResult(ctx context.Context, d DriftResult) error {
	violationsJSON, err := json.Marshal(d.Violations)
	if err != nil {
		return fmt.Errorf("marshaling violations: %w", err)
	}
	_, err = s.dbtx.ExecContext(ctx,
		`INSERT INTO drift_results (id, tenant_id, project_id, drift_score, violations, manual_review, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.TenantID, d.ProjectID, d.DriftScore, string(violationsJSON),
		boolToInt(d.ManualReview), d.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func scanDriftResult(scan func(dest ...any) error) (DriftResult, error) {
	var d DriftResult
	var violationsJSON, created string
	var manualReview int
	if err := scan(&d.ID, &d.TenantID, &d.ProjectID, &d.DriftScore, &violationsJSON, &manualReview, &created); err != nil {
		return DriftResult{}, err
	}
	if err := json.Unmarshal([]byte(violationsJSON), &d.Violations); err != nil {
		return DriftResult{}, fmt.Errorf("unmarshaling violations: %w", err)
	}
	d.ManualReview = manualReview != 0
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return d, nil
}

const driftResultColumns = `id, tenant_id, project_id, drift_score, violations, manual_review, created_at`

// latestDriftResult returns the most recent drift result for a project, or
// nil if none exists.
func (s *recordStore) latestDriftResult(ctx context.Context, tenantID, projectID string) (*DriftResult, error) {
	row := s.dbtx.QueryRowContext(ctx,
		`SELECT `+driftResultColumns+` FROM drift_results
		 WHERE tenant_id = ? AND project_id = ? ORDER BY created_at DESC LIMIT 1`,
		tenantID, projectID)
	d, err := scanDriftResult(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// DeadLetterEvent is an event that failed publication and is queued for
// bounded retry.
type DeadLetterEvent struct {
	ID         string
	TenantID   string
	Topic      string
	Payload    []byte
	RetryCount int
	MaxRetries int
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

const dlqEventColumns = `id, tenant_id, topic, payload, retry_count, max_retries, status, created_at, updated_at`

func scanDeadLetterEvent(rows *sql.Rows) (DeadLetterEvent, error) {
	var e DeadLetterEvent
	var created, updated string
	if err := rows.Scan(&e.ID, &e.TenantID, &e.Topic, &e.Payload, &e.RetryCount, &e.MaxRetries, &e.Status, &created, &updated); err != nil {
		return DeadLetterEvent{}, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return e, nil
}

// deadLetterEvents returns up to limit pending dead-letter events for a
// tenant, oldest first.
func (s *recordStore) deadLetterEvents(ctx context.Context, tenantID string, limit int) ([]DeadLetterEvent, error) {
	rows, err := s.dbtx.QueryContext(ctx,
		`SELECT `+dlqEventColumns+` FROM dead_letter_events
		 WHERE tenant_id = ? AND status NOT IN ('Published', 'PermanentlyFailed')
		 ORDER BY created_at LIMIT ?`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying dead letter events: %w", err)
	}
	defer rows.Close()

	var events []DeadLetterEvent
	for rows.Next() {
		e, err := scanDeadLetterEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dead letter event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// updateEventStatus records a dead-letter event's new status and retry
// count after a republish attempt (or a permanent-failure determination).
func (s *recordStore) updateEventStatus(ctx context.Context, id, status string, retryCount int) error {
	_, err := s.dbtx.ExecContext(ctx,
		`UPDATE dead_letter_events SET status = ?, retry_count = ?, updated_at = ? WHERE id = ?`,
		status, retryCount, time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

// enqueueDeadLetterEvent inserts a new dead-letter event; used by tests and
// by any producer that wants the DLQ processing job to eventually retry it.
func (s *recordStore) enqueueDeadLetterEvent(ctx context.Context, e DeadLetterEvent) error {
	_, err := s.dbtx.ExecContext(ctx,
		`INSERT INTO dead_letter_events (id, tenant_id, topic, payload, retry_count, max_retries, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.Topic, e.Payload, e.RetryCount, e.MaxRetries, e.Status,
		e.CreatedAt.UTC().Format(time.RFC3339Nano), e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}
