// Package graph implements the tenant-isolated property graph store (C2):
// nodes, edges, entities and entity-edges, with referential integrity,
// soft-delete cascade, reachability queries, Leiden-style community
// detection, and the snapshot export/import format.
package graph

import (
	"encoding/json"
	"time"

	"github.com/kikokikok/aeterna-sub000/pkg/tenant"
)

// Node is a Graph Node (spec.md §3).
type Node struct {
	ID             string
	Label          string
	Properties     json.RawMessage
	TenantID       string
	SourceMemoryID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// Edge is a Graph Edge (spec.md §3).
type Edge struct {
	ID         string
	SourceID   string
	TargetID   string
	Relation   string
	Properties json.RawMessage
	Weight     float64
	TenantID   string
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// Entity and EntityEdge share Node's and Edge's shape respectively, backed
// by their own tables (spec.md §3: "same shape as nodes/edges but a
// separate relation").
type Entity = Node
type EntityEdge = Edge

// Stats is the result of get_stats: counts of non-deleted rows.
type Stats struct {
	NodeCount       int
	EdgeCount       int
	EntityCount     int
	EntityEdgeCount int
}

// Ctx is shorthand for the Tenant Context every graph operation requires.
type Ctx = tenant.Context

// MaxPathDepth bounds every traversal (spec.md §4.2).
const MaxPathDepth = 5
