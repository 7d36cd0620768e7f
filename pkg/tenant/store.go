package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kikokikok/aeterna-sub000/internal/store"
)

// Store provides database operations for organizational units, following the
// teacher's Store-wraps-DBTX shape with manual row scanning.
type Store struct {
	dbtx store.DBTX
}

// NewStore creates a unit Store backed by the given database connection.
func NewStore(dbtx store.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const unitColumns = `id, tenant_id, name, kind, parent_id, created_at, updated_at`

func scanUnit(row *sql.Row) (Unit, error) {
	var u Unit
	var parentID sql.NullString
	var created, updated string
	if err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Kind, &parentID, &created, &updated); err != nil {
		return Unit{}, err
	}
	if parentID.Valid {
		u.ParentID = &parentID.String
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return u, nil
}

func scanUnits(rows *sql.Rows) ([]Unit, error) {
	defer rows.Close()
	var units []Unit
	for rows.Next() {
		var u Unit
		var parentID sql.NullString
		var created, updated string
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Name, &u.Kind, &parentID, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning unit row: %w", err)
		}
		if parentID.Valid {
			u.ParentID = &parentID.String
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating unit rows: %w", err)
	}
	return units, nil
}

// Get returns a single unit by id within a tenant; ErrNoRows if absent or
// belonging to another tenant (cross-tenant existence must never leak).
func (s *Store) Get(ctx context.Context, tenantID, id string) (Unit, error) {
	row := s.dbtx.QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM units WHERE id = ? AND tenant_id = ?`, id, tenantID)
	return scanUnit(row)
}

// Insert creates a new unit row.
func (s *Store) Insert(ctx context.Context, u Unit) error {
	_, err := s.dbtx.ExecContext(ctx,
		`INSERT INTO units (id, tenant_id, name, kind, parent_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.TenantID, u.Name, string(u.Kind), u.ParentID,
		u.CreatedAt.UTC().Format(time.RFC3339Nano), u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// AllUnits returns every unit across every tenant, for system-level sweeps
// such as the scheduler's periodic jobs that must consider all tenants.
func (s *Store) AllUnits(ctx context.Context) ([]Unit, error) {
	rows, err := s.dbtx.QueryContext(ctx, `SELECT `+unitColumns+` FROM units ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying all units: %w", err)
	}
	return scanUnits(rows)
}

// ChildrenOf returns the direct children of id within tenantID.
func (s *Store) ChildrenOf(ctx context.Context, tenantID, id string) ([]Unit, error) {
	rows, err := s.dbtx.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM units WHERE tenant_id = ? AND parent_id = ? ORDER BY created_at`,
		tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	return scanUnits(rows)
}
