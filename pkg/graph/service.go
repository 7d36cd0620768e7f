package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
	gstore "github.com/kikokikok/aeterna-sub000/internal/store"
)

// Service implements C2's operations over the embedded store.
type Service struct {
	db     *gstore.Store
	nodes  *Store
	logger *slog.Logger
	audit  *govern.AuditSink
}

// NewService constructs a Service backed by db, operating on the
// nodes/edges tables. Use NewEntityService for the entities/entity_edges
// relation.
func NewService(db *gstore.Store, logger *slog.Logger, audit *govern.AuditSink) *Service {
	return &Service{db: db, nodes: NewNodeStore(db.DB), logger: logger, audit: audit}
}

// NewEntityService constructs a Service operating on the entities/
// entity_edges relation (spec.md §3: "same shape ... separate relation").
func NewEntityService(db *gstore.Store, logger *slog.Logger, audit *govern.AuditSink) *Service {
	return &Service{db: db, nodes: NewEntityStore(db.DB), logger: logger, audit: audit}
}

// AddNode upserts a node, enforcing node.TenantID == ctx.TenantID.
func (s *Service) AddNode(ctx context.Context, tctx Ctx, n Node) error {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return err
	}
	if n.TenantID != tenantID {
		return govern.New(govern.KindTenantViolation, "node tenant %q does not match context tenant %q", n.TenantID, tenantID)
	}

	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	return s.nodes.UpsertNode(ctx, s.db.DB, n)
}

// AddEdge upserts an edge after checking both endpoints exist, are
// non-deleted, and share ctx's tenant.
func (s *Service) AddEdge(ctx context.Context, tctx Ctx, e Edge) error {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return err
	}
	if e.TenantID != tenantID {
		return govern.New(govern.KindTenantViolation, "edge tenant %q does not match context tenant %q", e.TenantID, tenantID)
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return s.addEdgeTx(ctx, tx, tenantID, e)
	})
}

func (s *Service) addEdgeTx(ctx context.Context, tx *sql.Tx, tenantID string, e Edge) error {
	srcOK, err := s.nodes.NodeExistsAndNotDeleted(ctx, tenantID, e.SourceID)
	if err != nil {
		return fmt.Errorf("checking source endpoint: %w", err)
	}
	tgtOK, err := s.nodes.NodeExistsAndNotDeleted(ctx, tenantID, e.TargetID)
	if err != nil {
		return fmt.Errorf("checking target endpoint: %w", err)
	}
	if !srcOK || !tgtOK {
		return govern.New(govern.KindReferentialIntegrity, "edge endpoint missing or deleted (source=%s target=%s)", e.SourceID, e.TargetID)
	}

	if e.Weight == 0 {
		e.Weight = 1.0
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	return s.nodes.UpsertEdge(ctx, tx, e)
}

// AddNodesAndEdgesAtomic inserts a batch of nodes then edges in one
// transaction; any per-item validation failure rolls back the entire batch.
func (s *Service) AddNodesAndEdgesAtomic(ctx context.Context, tctx Ctx, nodes []Node, edges []Edge) error {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, n := range nodes {
			if n.TenantID != tenantID {
				return govern.New(govern.KindTenantViolation, "node tenant %q does not match context tenant %q", n.TenantID, tenantID)
			}
			if n.CreatedAt.IsZero() {
				n.CreatedAt = now
			}
			n.UpdatedAt = now
			if err := s.nodes.UpsertNode(ctx, tx, n); err != nil {
				return fmt.Errorf("upserting node %s: %w", n.ID, err)
			}
		}
		for _, e := range edges {
			if e.TenantID != tenantID {
				return govern.New(govern.KindTenantViolation, "edge tenant %q does not match context tenant %q", e.TenantID, tenantID)
			}
			if err := s.addEdgeTx(ctx, tx, tenantID, e); err != nil {
				return fmt.Errorf("adding edge %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// SoftDeleteNode sets node.deleted and cascades to incident edges
// atomically. Idempotent: re-deleting returns NodeNotFound.
func (s *Service) SoftDeleteNode(ctx context.Context, tctx Ctx, id string) error {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return s.nodes.SoftDeleteNode(ctx, tx, tenantID, id, now)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return govern.New(govern.KindNodeNotFound, "node %s not found", id)
	}
	return err
}

// SoftDeleteNodesBySourceMemory deletes every node tagged with the given
// source-memory id, cascading to edges.
func (s *Service) SoftDeleteNodesBySourceMemory(ctx context.Context, tctx Ctx, sourceMemoryID string) (int, error) {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return 0, err
	}

	var count int
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		count, err = s.nodes.SoftDeleteNodesBySourceMemory(ctx, tx, tenantID, sourceMemoryID, time.Now().UTC())
		return err
	})
	return count, err
}

// CleanupDeleted permanently removes rows soft-deleted before olderThan.
func (s *Service) CleanupDeleted(ctx context.Context, tctx Ctx, olderThan time.Time) error {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return s.nodes.CleanupDeleted(ctx, tx, tenantID, olderThan)
	})
}

// GetNeighbors returns non-deleted incident edges joined with the other
// endpoint's node.
func (s *Service) GetNeighbors(ctx context.Context, tctx Ctx, nodeID string) ([]EdgeNodePair, error) {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return nil, err
	}

	edges, err := s.nodes.NeighborEdges(ctx, tenantID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("loading neighbor edges: %w", err)
	}

	var out []EdgeNodePair
	for _, e := range edges {
		otherID := e.TargetID
		if otherID == nodeID {
			otherID = e.SourceID
		}
		node, err := s.nodes.GetNode(ctx, tenantID, otherID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("loading neighbor node %s: %w", otherID, err)
		}
		out = append(out, EdgeNodePair{Edge: e, Node: node})
	}
	return out, nil
}

// EdgeNodePair couples an edge with the node at its far end from the
// traversal's perspective.
type EdgeNodePair struct {
	Edge Edge
	Node Node
}

// SearchNodes matches label or stringified properties by substring,
// newest-first, up to limit rows.
func (s *Service) SearchNodes(ctx context.Context, tctx Ctx, query string, limit int) ([]Node, error) {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return nil, err
	}
	return s.nodes.SearchNodes(ctx, tenantID, query, limit)
}

// GetStats returns counts of non-deleted nodes/edges for the tenant (or,
// when the service wraps entities, of entities/entity-edges, still reported
// in NodeCount/EdgeCount). EntityCount and EntityEdgeCount are left zero.
func (s *Service) GetStats(ctx context.Context, tctx Ctx) (Stats, error) {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return Stats{}, err
	}
	nodeCount, err := s.nodes.CountNotDeleted(ctx, tenantID)
	if err != nil {
		return Stats{}, fmt.Errorf("counting nodes: %w", err)
	}
	edgeCount, err := s.nodes.CountEdgesNotDeleted(ctx, tenantID)
	if err != nil {
		return Stats{}, fmt.Errorf("counting edges: %w", err)
	}
	return Stats{NodeCount: nodeCount, EdgeCount: edgeCount}, nil
}
