package confirmation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kikokikok/aeterna-sub000/internal/store"
)

// Store persists confirmation_requests rows.
type Store struct {
	dbtx store.DBTX
}

func NewStore(dbtx store.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const requestColumns = `id, tenant_id, agent_id, action, description, target_kind, target_id,
	risk, reason, agent_context, authorized_approvers, status, resolved_by,
	resolution_comment, created_at, expires_at, resolved_at`

func scanRequest(scan func(dest ...any) error) (Request, error) {
	var r Request
	var targetID, resolvedBy, resolutionComment, resolvedAt sql.NullString
	var agentContext, approvers string
	var created, expires string

	err := scan(&r.ID, &r.TenantID, &r.AgentID, &r.Action, &r.Description, &r.TargetKind, &targetID,
		&r.Risk, &r.Reason, &agentContext, &approvers, &r.Status, &resolvedBy,
		&resolutionComment, &created, &expires, &resolvedAt)
	if err != nil {
		return Request{}, err
	}

	if targetID.Valid {
		r.TargetID = &targetID.String
	}
	if resolvedBy.Valid {
		r.ResolvedBy = &resolvedBy.String
	}
	if resolutionComment.Valid {
		r.ResolutionComment = &resolutionComment.String
	}
	r.AgentContext = json.RawMessage(agentContext)
	if err := json.Unmarshal([]byte(approvers), &r.AuthorizedApprovers); err != nil {
		return Request{}, fmt.Errorf("unmarshaling authorized_approvers: %w", err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	r.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expires)
	if resolvedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, resolvedAt.String)
		r.ResolvedAt = &t
	}
	return r, nil
}

// Create inserts a new pending confirmation request.
func (s *Store) Create(ctx context.Context, r Request) error {
	approvers, err := json.Marshal(r.AuthorizedApprovers)
	if err != nil {
		return fmt.Errorf("marshaling authorized_approvers: %w", err)
	}
	agentContext := r.AgentContext
	if agentContext == nil {
		agentContext = json.RawMessage("{}")
	}

	_, err = s.dbtx.ExecContext(ctx,
		`INSERT INTO confirmation_requests (
			id, tenant_id, agent_id, action, description, target_kind, target_id,
			risk, reason, agent_context, authorized_approvers, status, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TenantID, r.AgentID, r.Action, r.Description, r.TargetKind, r.TargetID,
		r.Risk, string(r.Reason), string(agentContext), string(approvers), string(StatusPending),
		r.CreatedAt.UTC().Format(time.RFC3339Nano), r.ExpiresAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Get returns a single confirmation request by id, scoped to tenant.
func (s *Store) Get(ctx context.Context, tenantID, id string) (Request, error) {
	row := s.dbtx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM confirmation_requests WHERE tenant_id = ? AND id = ?`,
		tenantID, id)
	return scanRequest(row.Scan)
}

// Resolve transitions a pending request to approved or denied; a no-op
// (zero rows affected) if the request is not currently pending.
func (s *Store) Resolve(ctx context.Context, tenantID, id string, status Status, resolvedBy string, comment *string, resolvedAt time.Time) (bool, error) {
	result, err := s.dbtx.ExecContext(ctx,
		`UPDATE confirmation_requests
		 SET status = ?, resolved_by = ?, resolution_comment = ?, resolved_at = ?
		 WHERE tenant_id = ? AND id = ? AND status = ?`,
		string(status), resolvedBy, comment, resolvedAt.UTC().Format(time.RFC3339Nano),
		tenantID, id, string(StatusPending),
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// ExpireOldRequests transitions every pending, past-expiry request (across
// all tenants) to expired, returning the count affected.
func (s *Store) ExpireOldRequests(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.dbtx.ExecContext(ctx,
		`UPDATE confirmation_requests SET status = ? WHERE status = ? AND expires_at < ?`,
		string(StatusExpired), string(StatusPending), now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// PendingForApprover returns every pending, non-expired request in tenantID
// where approver appears in authorized_approvers. Containment is checked in
// Go since the embedded store has no JSON-containment operator.
func (s *Store) PendingForApprover(ctx context.Context, tenantID, approver string, now time.Time) ([]Request, error) {
	rows, err := s.dbtx.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM confirmation_requests
		 WHERE tenant_id = ? AND status = ? AND expires_at > ?
		 ORDER BY created_at DESC`,
		tenantID, string(StatusPending), now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("querying confirmation requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning confirmation request: %w", err)
		}
		if r.isPendingAndUnexpired(now) && r.authorizes(approver) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}
