package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	gstore "github.com/kikokikok/aeterna-sub000/internal/store"
)

// Store provides raw database operations for nodes and edges (and, via the
// same shape, entities/entity-edges). Mirrors the teacher's Store-wraps-dbtx
// pattern with manual row scanning.
type Store struct {
	dbtx  gstore.DBTX
	table string // "nodes" or "entities"
	edges string // "edges" or "entity_edges"
}

// NewNodeStore returns a Store over the nodes/edges tables.
func NewNodeStore(dbtx gstore.DBTX) *Store {
	return &Store{dbtx: dbtx, table: "nodes", edges: "edges"}
}

// NewEntityStore returns a Store over the entities/entity_edges tables.
func NewEntityStore(dbtx gstore.DBTX) *Store {
	return &Store{dbtx: dbtx, table: "entities", edges: "entity_edges"}
}

const nodeColumns = `id, tenant_id, label, properties, source_memory_id, created_at, updated_at, deleted_at`

func scanNode(scan func(dest ...any) error) (Node, error) {
	var n Node
	var sourceMemory, deletedAt sql.NullString
	var props string
	var created, updated string
	if err := scan(&n.ID, &n.TenantID, &n.Label, &props, &sourceMemory, &created, &updated, &deletedAt); err != nil {
		return Node{}, err
	}
	n.Properties = json.RawMessage(props)
	if sourceMemory.Valid {
		n.SourceMemoryID = &sourceMemory.String
	}
	n.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	n.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, deletedAt.String)
		n.DeletedAt = &t
	}
	return n, nil
}

// GetNode returns a non-deleted node by id within tenantID.
func (s *Store) GetNode(ctx context.Context, tenantID, id string) (Node, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL`, nodeColumns, s.table)
	row := s.dbtx.QueryRowContext(ctx, q, id, tenantID)
	return scanNode(row.Scan)
}

// NodeExistsAndNotDeleted is the referential-integrity check add_edge uses.
func (s *Store) NodeExistsAndNotDeleted(ctx context.Context, tenantID, id string) (bool, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL`, s.table)
	var count int
	if err := s.dbtx.QueryRowContext(ctx, q, id, tenantID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpsertNode inserts the node, or if id already exists, overwrites its
// fields and bumps updated_at (spec.md §4.2 "upsert by id; updated bumped on
// conflict").
func (s *Store) UpsertNode(ctx context.Context, dbtx gstore.DBTX, n Node) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, label, properties, source_memory_id, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			properties = excluded.properties,
			source_memory_id = excluded.source_memory_id,
			updated_at = excluded.updated_at`, s.table)
	_, err := dbtx.ExecContext(ctx, q,
		n.ID, n.TenantID, n.Label, string(n.Properties), n.SourceMemoryID,
		n.CreatedAt.UTC().Format(time.RFC3339Nano), n.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// SoftDeleteNode sets deleted_at on the node and cascades to incident edges
// within the same transaction. Returns sql.ErrNoRows if the node was absent
// or already deleted (idempotent re-delete).
func (s *Store) SoftDeleteNode(ctx context.Context, dbtx gstore.DBTX, tenantID, id string, at time.Time) error {
	ts := at.UTC().Format(time.RFC3339Nano)
	q := fmt.Sprintf(`UPDATE %s SET deleted_at = ? WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL`, s.table)
	res, err := dbtx.ExecContext(ctx, q, ts, id, tenantID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	eq := fmt.Sprintf(`UPDATE %s SET deleted_at = ? WHERE (source_id = ? OR target_id = ?) AND tenant_id = ? AND deleted_at IS NULL`, s.edges)
	_, err = dbtx.ExecContext(ctx, eq, ts, id, id, tenantID)
	return err
}

// SoftDeleteNodesBySourceMemory deletes every node whose source_memory_id
// matches, cascading to their edges, and returns the count deleted.
func (s *Store) SoftDeleteNodesBySourceMemory(ctx context.Context, dbtx gstore.DBTX, tenantID, sourceMemoryID string, at time.Time) (int, error) {
	ts := at.UTC().Format(time.RFC3339Nano)

	rows, err := dbtx.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id = ? AND source_memory_id = ? AND deleted_at IS NULL`, s.table),
		tenantID, sourceMemoryID)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.SoftDeleteNode(ctx, dbtx, tenantID, id, at); err != nil && err != sql.ErrNoRows {
			return 0, err
		}
	}
	_ = ts
	return len(ids), nil
}

// CleanupDeleted permanently removes rows deleted before cutoff, edges
// before nodes so no dangling edge ever references a removed node row.
func (s *Store) CleanupDeleted(ctx context.Context, dbtx gstore.DBTX, tenantID string, cutoff time.Time) error {
	ts := cutoff.UTC().Format(time.RFC3339Nano)
	if _, err := dbtx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = ? AND deleted_at IS NOT NULL AND deleted_at < ?`, s.edges),
		tenantID, ts); err != nil {
		return err
	}
	_, err := dbtx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = ? AND deleted_at IS NOT NULL AND deleted_at < ?`, s.table),
		tenantID, ts)
	return err
}

// SearchNodes matches label or stringified properties by substring,
// newest-first.
func (s *Store) SearchNodes(ctx context.Context, tenantID, query string, limit int) ([]Node, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s
		WHERE tenant_id = ? AND deleted_at IS NULL AND (label LIKE ? OR properties LIKE ?)
		ORDER BY created_at DESC LIMIT ?`, nodeColumns, s.table)
	like := "%" + query + "%"
	rows, err := s.dbtx.QueryContext(ctx, q, tenantID, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		n, err := scanNode(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountNotDeleted is used by get_stats.
func (s *Store) CountNotDeleted(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.dbtx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id = ? AND deleted_at IS NULL`, s.table),
		tenantID).Scan(&n)
	return n, err
}

// CountEdgesNotDeleted is used by get_stats.
func (s *Store) CountEdgesNotDeleted(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.dbtx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id = ? AND deleted_at IS NULL`, s.edges),
		tenantID).Scan(&n)
	return n, err
}

// AllNodes returns every non-deleted node for a tenant, used by snapshot
// export and community detection.
func (s *Store) AllNodes(ctx context.Context, tenantID string) ([]Node, error) {
	rows, err := s.dbtx.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = ? AND deleted_at IS NULL`, nodeColumns, s.table),
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Node
	for rows.Next() {
		n, err := scanNode(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
