package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
)

// Service implements the C1 operations: create_unit, get_ancestors,
// get_descendants, with tenant-bounded visibility and cycle safety.
type Service struct {
	store *Store
}

// NewService constructs a Service over the given Store.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// CreateUnit inserts a new unit. If parentID is set, the parent must belong
// to the same tenant and be exactly one level above kind; the assignment is
// also rejected if it would create a cycle (spec.md §4.1), though a cycle is
// structurally impossible at creation since the parent must already exist.
func (s *Service) CreateUnit(ctx context.Context, tctx Context, name string, kind Kind, parentID *string) (Unit, error) {
	now := time.Now().UTC()
	u := Unit{
		ID:        uuid.NewString(),
		TenantID:  tctx.TenantID,
		Name:      name,
		Kind:      kind,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if parentID != nil {
		parent, err := s.store.Get(ctx, tctx.TenantID, *parentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return Unit{}, govern.New(govern.KindReferentialIntegrity, "parent unit %s not found in tenant", *parentID)
			}
			return Unit{}, fmt.Errorf("loading parent unit: %w", err)
		}
		want := parentKind(kind)
		if want == "" || parent.Kind != want {
			return Unit{}, govern.New(govern.KindReferentialIntegrity,
				"unit of kind %s must have a parent of kind %s, got %s", kind, want, parent.Kind)
		}
		// Cycle safety: scan the candidate parent's own ancestors for the
		// new unit's id. Structurally unreachable before insertion (the new
		// id cannot yet appear as anyone's ancestor), but checked explicitly
		// per spec.md §4.1 so the invariant holds if this is ever reused for
		// re-parenting.
		ancestors, err := s.GetAncestors(ctx, tctx, *parentID)
		if err != nil {
			return Unit{}, err
		}
		for _, a := range ancestors {
			if a.ID == u.ID {
				return Unit{}, govern.New(govern.KindReferentialIntegrity, "parent assignment would create a cycle")
			}
		}
	}

	if err := s.store.Insert(ctx, u); err != nil {
		return Unit{}, fmt.Errorf("inserting unit: %w", err)
	}
	return u, nil
}

// GetAncestors returns the transitive closure over parent-id, root-first, for
// unitID within tctx's tenant. A unit outside the tenant is invisible: an
// empty slice, never an error that would leak existence.
func (s *Service) GetAncestors(ctx context.Context, tctx Context, unitID string) ([]Unit, error) {
	var chain []Unit
	currentID := unitID
	seen := make(map[string]bool)

	for {
		u, err := s.store.Get(ctx, tctx.TenantID, currentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				break
			}
			return nil, fmt.Errorf("loading unit %s: %w", currentID, err)
		}
		if seen[u.ID] {
			break // a cycle should never exist; this bounds the walk if one does.
		}
		seen[u.ID] = true

		if u.ParentID == nil {
			break
		}
		parent, err := s.store.Get(ctx, tctx.TenantID, *u.ParentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				break
			}
			return nil, fmt.Errorf("loading unit %s: %w", *u.ParentID, err)
		}
		chain = append([]Unit{parent}, chain...)
		currentID = parent.ID
	}

	return chain, nil
}

// AllUnits returns every unit across every tenant. Scheduler jobs that sweep
// all tenants (quick drift scan, semantic analysis, weekly report, DLQ
// processing) use this instead of a tenant-scoped query.
func (s *Service) AllUnits(ctx context.Context) ([]Unit, error) {
	return s.store.AllUnits(ctx)
}

// GetUnit returns a single unit by id within tctx's tenant.
func (s *Service) GetUnit(ctx context.Context, tctx Context, unitID string) (Unit, error) {
	return s.store.Get(ctx, tctx.TenantID, unitID)
}

// GetDescendants returns the transitive closure over parent-id,
// breadth-first, for unitID within tctx's tenant.
func (s *Service) GetDescendants(ctx context.Context, tctx Context, unitID string) ([]Unit, error) {
	// A unit in another tenant is invisible: confirm visibility first.
	if _, err := s.store.Get(ctx, tctx.TenantID, unitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading unit %s: %w", unitID, err)
	}

	var result []Unit
	queue := []string{unitID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		children, err := s.store.ChildrenOf(ctx, tctx.TenantID, id)
		if err != nil {
			return nil, fmt.Errorf("loading children of %s: %w", id, err)
		}
		for _, c := range children {
			result = append(result, c)
			queue = append(queue, c.ID)
		}
	}
	return result, nil
}
