package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	gstore "github.com/kikokikok/aeterna-sub000/internal/store"
)

const edgeColumns = `id, tenant_id, source_id, target_id, relation, properties, weight, created_at, deleted_at`

func scanEdge(scan func(dest ...any) error) (Edge, error) {
	var e Edge
	var props string
	var created string
	var deletedAt sql.NullString
	if err := scan(&e.ID, &e.TenantID, &e.SourceID, &e.TargetID, &e.Relation, &props, &e.Weight, &created, &deletedAt); err != nil {
		return Edge{}, err
	}
	e.Properties = json.RawMessage(props)
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, deletedAt.String)
		e.DeletedAt = &t
	}
	return e, nil
}

// GetEdge returns a non-deleted edge by id within tenantID.
func (s *Store) GetEdge(ctx context.Context, tenantID, id string) (Edge, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL`, edgeColumns, s.edges)
	row := s.dbtx.QueryRowContext(ctx, q, id, tenantID)
	return scanEdge(row.Scan)
}

// UpsertEdge inserts or overwrites an edge by id.
func (s *Store) UpsertEdge(ctx context.Context, dbtx gstore.DBTX, e Edge) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, source_id, target_id, relation, properties, weight, created_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			relation = excluded.relation,
			properties = excluded.properties,
			weight = excluded.weight`, s.edges)
	_, err := dbtx.ExecContext(ctx, q,
		e.ID, e.TenantID, e.SourceID, e.TargetID, e.Relation, string(e.Properties), e.Weight,
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// NeighborEdges returns every non-deleted edge incident to nodeID.
func (s *Store) NeighborEdges(ctx context.Context, tenantID, nodeID string) ([]Edge, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s
		WHERE tenant_id = ? AND deleted_at IS NULL AND (source_id = ? OR target_id = ?)
		ORDER BY created_at`, edgeColumns, s.edges)
	rows, err := s.dbtx.QueryContext(ctx, q, tenantID, nodeID, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Edge
	for rows.Next() {
		e, err := scanEdge(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AllEdges returns every non-deleted edge for a tenant.
func (s *Store) AllEdges(ctx context.Context, tenantID string) ([]Edge, error) {
	rows, err := s.dbtx.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = ? AND deleted_at IS NULL`, edgeColumns, s.edges),
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Edge
	for rows.Next() {
		e, err := scanEdge(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TruncateTenant deletes every node and edge row for a tenant (used by
// snapshot import and backup restore). Edges first, per cleanup ordering.
func (s *Store) TruncateTenant(ctx context.Context, dbtx gstore.DBTX, tenantID string) error {
	if _, err := dbtx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = ?`, s.edges), tenantID); err != nil {
		return err
	}
	_, err := dbtx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = ?`, s.table), tenantID)
	return err
}
