package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kikokikok/aeterna-sub000/internal/store"
)

// Store persists approval_requests and decisions rows.
type Store struct {
	dbtx store.DBTX
}

func NewStore(dbtx store.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const requestColumns = `id, tenant_id, number, kind, target, company_id, org_id, team_id, project_id,
	title, description, payload, risk, requestor, approval_mode, required_approvals,
	current_approvals, status, escalation_tier, created_at, expires_at, resolved_at,
	resolution_reason, applied, applied_by, applied_at`

func scanRequest(scan func(dest ...any) error) (Request, error) {
	var r Request
	var companyID, orgID, teamID, projectID sql.NullString
	var resolvedAt, resolutionReason, appliedBy, appliedAt sql.NullString
	var payload string
	var created, expires string
	var applied int

	err := scan(&r.ID, &r.TenantID, &r.Number, &r.Kind, &r.Target,
		&companyID, &orgID, &teamID, &projectID,
		&r.Title, &r.Description, &payload, &r.Risk, &r.Requestor, &r.Mode,
		&r.RequiredApprovals, &r.CurrentApprovals, &r.Status, &r.EscalationTier,
		&created, &expires, &resolvedAt, &resolutionReason, &applied, &appliedBy, &appliedAt,
	)
	if err != nil {
		return Request{}, err
	}

	if companyID.Valid {
		r.Scope.CompanyID = &companyID.String
	}
	if orgID.Valid {
		r.Scope.OrgID = &orgID.String
	}
	if teamID.Valid {
		r.Scope.TeamID = &teamID.String
	}
	if projectID.Valid {
		r.Scope.ProjectID = &projectID.String
	}
	r.Payload = json.RawMessage(payload)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	r.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expires)
	if resolvedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, resolvedAt.String)
		r.ResolvedAt = &t
	}
	if resolutionReason.Valid {
		r.ResolutionReason = &resolutionReason.String
	}
	r.Applied = applied != 0
	if appliedBy.Valid {
		r.AppliedBy = &appliedBy.String
	}
	if appliedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, appliedAt.String)
		r.AppliedAt = &t
	}
	return r, nil
}

// NextNumber returns the next monotonic human-readable number for tenantID.
// Callers must invoke this inside the same transaction as the subsequent
// Create to avoid a collision racing the unique (tenant_id, number) index.
func (s *Store) NextNumber(ctx context.Context, tenantID string) (int, error) {
	row := s.dbtx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM approval_requests WHERE tenant_id = ?`, tenantID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Create inserts a new approval request row.
func (s *Store) Create(ctx context.Context, r Request) error {
	payload := r.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}
	var resolvedAt any
	if r.ResolvedAt != nil {
		resolvedAt = r.ResolvedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.dbtx.ExecContext(ctx,
		`INSERT INTO approval_requests (
			id, tenant_id, number, kind, target, company_id, org_id, team_id, project_id,
			title, description, payload, risk, requestor, approval_mode, required_approvals,
			current_approvals, status, escalation_tier, created_at, expires_at, resolved_at,
			resolution_reason, applied, applied_by, applied_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TenantID, r.Number, string(r.Kind), r.Target,
		r.Scope.CompanyID, r.Scope.OrgID, r.Scope.TeamID, r.Scope.ProjectID,
		r.Title, r.Description, string(payload), string(r.Risk), r.Requestor, string(r.Mode),
		r.RequiredApprovals, r.CurrentApprovals, string(r.Status), r.EscalationTier,
		r.CreatedAt.UTC().Format(time.RFC3339Nano), r.ExpiresAt.UTC().Format(time.RFC3339Nano), resolvedAt,
		r.ResolutionReason, boolToInt(r.Applied), r.AppliedBy, nil,
	)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Get returns a single request by id, scoped to tenant.
func (s *Store) Get(ctx context.Context, tenantID, id string) (Request, error) {
	row := s.dbtx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM approval_requests WHERE tenant_id = ? AND id = ?`, tenantID, id)
	return scanRequest(row.Scan)
}

// UpdateTally updates a request's current_approvals, status, escalation
// tier and resolution fields after a decision or an expiry/escalation pass.
func (s *Store) UpdateTally(ctx context.Context, r Request) error {
	var resolvedAt any
	if r.ResolvedAt != nil {
		resolvedAt = r.ResolvedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.dbtx.ExecContext(ctx,
		`UPDATE approval_requests SET
			current_approvals = ?, status = ?, escalation_tier = ?,
			resolved_at = ?, resolution_reason = ?
		 WHERE tenant_id = ? AND id = ?`,
		r.CurrentApprovals, string(r.Status), r.EscalationTier, resolvedAt, r.ResolutionReason,
		r.TenantID, r.ID,
	)
	return err
}

// MarkApplied records who applied an approved request, and when.
func (s *Store) MarkApplied(ctx context.Context, tenantID, id, appliedBy string, appliedAt time.Time) (bool, error) {
	result, err := s.dbtx.ExecContext(ctx,
		`UPDATE approval_requests SET applied = 1, applied_by = ?, applied_at = ?
		 WHERE tenant_id = ? AND id = ? AND status = ?`,
		appliedBy, appliedAt.UTC().Format(time.RFC3339Nano), tenantID, id, string(StatusApproved),
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// InsertDecision records an approver's verdict. A second decision from the
// same approver on the same request violates idx_decisions_unique; callers
// distinguish that case with IsDuplicateDecision.
func (s *Store) InsertDecision(ctx context.Context, d Decision) error {
	_, err := s.dbtx.ExecContext(ctx,
		`INSERT INTO decisions (id, request_id, approver, verdict, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.RequestID, d.Approver, string(d.Verdict), d.Comment, d.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// IsDuplicateDecision reports whether err is the unique-constraint
// violation InsertDecision raises for a repeated approver.
func IsDuplicateDecision(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") && strings.Contains(err.Error(), "decisions")
}

// Decisions returns every decision recorded against requestID, oldest
// first.
func (s *Store) Decisions(ctx context.Context, requestID string) ([]Decision, error) {
	rows, err := s.dbtx.QueryContext(ctx,
		`SELECT id, request_id, approver, verdict, comment, created_at FROM decisions
		 WHERE request_id = ? ORDER BY created_at`, requestID)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var comment sql.NullString
		var created string
		if err := rows.Scan(&d.ID, &d.RequestID, &d.Approver, &d.Verdict, &comment, &created); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		if comment.Valid {
			d.Comment = &comment.String
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListPending returns pending requests for tenantID matching filters; scope
// filters are exact (spec.md §4.6).
func (s *Store) ListPending(ctx context.Context, tenantID string, filters ListFilters) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE tenant_id = ? AND status = ?`
	args := []any{tenantID, string(StatusPending)}

	if filters.Kind != nil {
		query += ` AND kind = ?`
		args = append(args, string(*filters.Kind))
	}
	if filters.Scope.CompanyID != nil {
		query += ` AND company_id = ?`
		args = append(args, *filters.Scope.CompanyID)
	}
	if filters.Scope.OrgID != nil {
		query += ` AND org_id = ?`
		args = append(args, *filters.Scope.OrgID)
	}
	if filters.Scope.TeamID != nil {
		query += ` AND team_id = ?`
		args = append(args, *filters.Scope.TeamID)
	}
	if filters.Scope.ProjectID != nil {
		query += ` AND project_id = ?`
		args = append(args, *filters.Scope.ProjectID)
	}
	if filters.Requestor != nil {
		query += ` AND requestor = ?`
		args = append(args, *filters.Requestor)
	}
	query += ` ORDER BY created_at`
	if filters.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filters.Limit)
	}

	rows, err := s.dbtx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pending requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByStatusSince counts tenantID's requests in status whose resolved_at
// (or, for status=pending/escalated, created_at) falls on or after since —
// used by the CLI's `govern status` daily counters.
func (s *Store) CountByStatusSince(ctx context.Context, tenantID string, status Status, since time.Time) (int, error) {
	column := "resolved_at"
	if status == StatusPending || status == StatusEscalated {
		column = "created_at"
	}
	var count int
	err := s.dbtx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM approval_requests WHERE tenant_id = ? AND status = ? AND `+column+` >= ?`,
		tenantID, string(status), since.UTC().Format(time.RFC3339Nano),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting requests by status: %w", err)
	}
	return count, nil
}

// PendingPastExpiry returns every pending or escalated request across every
// tenant whose expires_at is before now, for the expiry pass. Escalated
// requests are re-scanned (not just pending ones) because advance() flips a
// request to StatusEscalated on its first tier and never revisits expires_at;
// without re-selecting it here, a request with further tiers or a terminal
// fallback still to fire would get stuck in escalated forever.
func (s *Store) PendingPastExpiry(ctx context.Context, now time.Time) ([]Request, error) {
	rows, err := s.dbtx.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM approval_requests WHERE status IN (?, ?) AND expires_at < ?`,
		string(StatusPending), string(StatusEscalated), now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("querying expired requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
