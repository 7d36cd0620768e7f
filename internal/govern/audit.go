package govern

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is a single append-only security/governance audit record
// (spec.md §3 "Audit Entry").
type AuditEntry struct {
	TenantID   string
	Action     string
	RequestID  string
	TargetKind string
	TargetID   string
	ActorKind  string
	ActorID    string
	Details    json.RawMessage
}

const (
	auditBufferSize = 256
	auditFlushEvery = 2 * time.Second
	auditFlushBatch = 32
)

// AuditSink is an async, buffered writer for audit entries, mirroring the
// channel+ticker+batch-flush shape used for HTTP request auditing elsewhere
// in this codebase, adapted to the embedded store's single connection.
type AuditSink struct {
	db      *sql.DB
	logger  *slog.Logger
	entries chan AuditEntry
	wg      sync.WaitGroup
}

// NewAuditSink creates an AuditSink. Call Start to begin flushing.
func NewAuditSink(db *sql.DB, logger *slog.Logger) *AuditSink {
	return &AuditSink{
		db:      db,
		logger:  logger,
		entries: make(chan AuditEntry, auditBufferSize),
	}
}

// Start begins the background flush loop. It exits once ctx is cancelled
// and every buffered entry has been flushed.
func (s *AuditSink) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Close stops accepting entries and waits for the final flush.
func (s *AuditSink) Close() {
	close(s.entries)
	s.wg.Wait()
}

// Log enqueues an entry without blocking; a full buffer drops the entry and
// logs a warning rather than stalling the caller's critical path.
func (s *AuditSink) Log(entry AuditEntry) {
	if entry.Details == nil {
		entry.Details = json.RawMessage("{}")
	}
	select {
	case s.entries <- entry:
	default:
		s.logger.Warn("audit buffer full, dropping entry", "action", entry.Action)
	}
}

// SecurityReject is a convenience for the rejection paths spec.md §7 requires
// to always write an audit entry (invalid tenant id, SQL-injection-like
// pattern, cross-tenant access, authorization denial).
func (s *AuditSink) SecurityReject(tenantID, action, reason, rejectedValue string) {
	details, _ := json.Marshal(map[string]string{
		"reason":         reason,
		"rejected_value": rejectedValue,
	})
	s.Log(AuditEntry{
		TenantID:  tenantID,
		Action:    action,
		ActorKind: "system",
		Details:   details,
	})
}

func (s *AuditSink) run(ctx context.Context) {
	ticker := time.NewTicker(auditFlushEvery)
	defer ticker.Stop()

	batch := make([]AuditEntry, 0, auditFlushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-s.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= auditFlushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-s.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *AuditSink) flush(entries []AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("beginning audit flush transaction", "error", err)
		return
	}

	const q = `INSERT INTO audit_log
		(id, tenant_id, action, request_id, target_kind, target_id, actor_kind, actor_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, q,
			uuid.NewString(), nullable(e.TenantID), e.Action, nullable(e.RequestID),
			nullable(e.TargetKind), nullable(e.TargetID), e.ActorKind, nullable(e.ActorID),
			string(e.Details), time.Now().UTC().Format(time.RFC3339Nano),
		); err != nil {
			s.logger.Error("writing audit entry", "error", err, "action", e.Action)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("committing audit flush", "error", err)
	}
}

// AuditFilter narrows Query's results (cmd/aeterna's `govern audit`).
type AuditFilter struct {
	Action     string
	Since      time.Time
	ActorID    string
	TargetKind string
	Limit      int
}

// AuditRecord is one row read back from the audit log.
type AuditRecord struct {
	ID         string
	TenantID   string
	Action     string
	RequestID  string
	TargetKind string
	TargetID   string
	ActorKind  string
	ActorID    string
	Details    json.RawMessage
	CreatedAt  time.Time
}

// Query reads audit entries for tenantID, newest first, matching every
// non-zero field of filter. It reads directly from the store rather than
// the in-flight buffer, so very recently logged entries may lag by up to
// auditFlushEvery.
func (s *AuditSink) Query(ctx context.Context, tenantID string, filter AuditFilter) ([]AuditRecord, error) {
	query := `SELECT id, tenant_id, action, request_id, target_kind, target_id, actor_kind, actor_id, details, created_at
		FROM audit_log WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, filter.Action)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}
	if filter.ActorID != "" {
		query += ` AND actor_id = ?`
		args = append(args, filter.ActorID)
	}
	if filter.TargetKind != "" {
		query += ` AND target_kind = ?`
		args = append(args, filter.TargetKind)
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var requestID, targetKind, targetID, actorID, tenant sql.NullString
		var createdAt, details string
		if err := rows.Scan(&rec.ID, &tenant, &rec.Action, &requestID, &targetKind, &targetID, &rec.ActorKind, &actorID, &details, &createdAt); err != nil {
			return nil, err
		}
		rec.TenantID = tenant.String
		rec.RequestID = requestID.String
		rec.TargetKind = targetKind.String
		rec.TargetID = targetID.String
		rec.ActorID = actorID.String
		rec.Details = json.RawMessage(details)
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
