package graph

import (
	"context"
	"fmt"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
)

// RelatedResult is one hop out from the origin in a find_related traversal.
type RelatedResult struct {
	Edge Edge
	Node Node
	Hop  int
}

// FindRelated performs a breadth-first traversal up to min(maxHops,
// MaxPathDepth), never revisiting the origin node, ordered by hop then edge
// creation time (spec.md §4.2).
func (s *Service) FindRelated(ctx context.Context, tctx Ctx, nodeID string, maxHops int) ([]RelatedResult, error) {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return nil, err
	}

	effectiveHops := maxHops
	if effectiveHops > MaxPathDepth {
		if s.logger != nil {
			s.logger.Warn("requested hop depth exceeds maximum, capping",
				"requested", maxHops, "max", MaxPathDepth)
		}
		effectiveHops = MaxPathDepth
	}

	visited := map[string]bool{nodeID: true}
	frontier := []string{nodeID}
	var out []RelatedResult

	for hop := 1; hop <= effectiveHops; hop++ {
		var next []string
		for _, cur := range frontier {
			edges, err := s.nodes.NeighborEdges(ctx, tenantID, cur)
			if err != nil {
				return nil, fmt.Errorf("loading neighbor edges of %s: %w", cur, err)
			}
			for _, e := range edges {
				otherID := e.TargetID
				if otherID == cur {
					otherID = e.SourceID
				}
				if visited[otherID] {
					continue
				}
				node, err := s.nodes.GetNode(ctx, tenantID, otherID)
				if err != nil {
					continue
				}
				visited[otherID] = true
				next = append(next, otherID)
				out = append(out, RelatedResult{Edge: e, Node: node, Hop: hop})
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	return out, nil
}

// ShortestPath returns the edges on a shortest forward path from start to
// end, or nil if none exists within maxDepth (MaxPathDepth when nil); a
// maxDepth above MaxPathDepth is rejected with MaxDepthExceeded. Ties are
// broken by first-discovered order under a BFS that expands a node's edges
// in creation-time order (spec.md §9 Open Question decision).
func (s *Service) ShortestPath(ctx context.Context, tctx Ctx, startID, endID string, maxDepth *int) ([]Edge, error) {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return nil, err
	}

	depth := MaxPathDepth
	if maxDepth != nil {
		if *maxDepth > MaxPathDepth {
			return nil, govern.New(govern.KindMaxDepthExceeded, "requested depth %d exceeds policy cap of %d", *maxDepth, MaxPathDepth)
		}
		depth = *maxDepth
	}

	if startID == endID {
		return nil, nil
	}

	type frame struct {
		nodeID string
		path   []Edge
	}

	visited := map[string]bool{startID: true}
	queue := []frame{{nodeID: startID}}

	for len(queue) > 0 && len(queue[0].path) < depth {
		cur := queue[0]
		queue = queue[1:]

		edges, err := s.nodes.NeighborEdges(ctx, tenantID, cur.nodeID)
		if err != nil {
			return nil, fmt.Errorf("loading neighbor edges of %s: %w", cur.nodeID, err)
		}
		for _, e := range edges {
			if e.SourceID != cur.nodeID {
				continue // forward edges only
			}
			if visited[e.TargetID] {
				continue
			}
			path := append(append([]Edge{}, cur.path...), e)
			if e.TargetID == endID {
				return path, nil
			}
			visited[e.TargetID] = true
			queue = append(queue, frame{nodeID: e.TargetID, path: path})
		}
	}

	return nil, nil
}
