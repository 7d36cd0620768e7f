package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
)

// AnalyticalSink is the optional external analytical catalog contract
// (spec.md §4.2 "optional Iceberg-style external sink"). Implementations
// execute the three DDL/DML statements against whatever engine backs the
// catalog; this module ships no concrete implementation since spec.md
// treats it purely as a plug-in point.
type AnalyticalSink interface {
	CreateTableIfNotExists(ctx context.Context, table string) error
	DeleteAll(ctx context.Context, table string) error
	InsertFromSelect(ctx context.Context, table, sourceQuery string) error
}

// ErrOptimisticConflict is returned by an AnalyticalSink implementation when
// a write loses a concurrent-modification race; Persist retries these with
// backoff, but propagates any other error immediately.
var ErrOptimisticConflict = errors.New("optimistic concurrency conflict")

// Persist writes the tenant's current nodes/edges to catalog-scoped tables
// {catalog}.memory_nodes_{tenant} and {catalog}.memory_edges_{tenant} via
// CREATE-IF-NOT-EXISTS -> DELETE -> INSERT-FROM-SELECT, retrying optimistic
// concurrency conflicts with exponential backoff up to maxRetries.
func (s *Service) Persist(ctx context.Context, tctx Ctx, sink AnalyticalSink, catalog string, maxRetries int) error {
	tenantID, err := validateTenant(tctx, s.audit)
	if err != nil {
		return err
	}

	nodesTable := fmt.Sprintf("%s.memory_nodes_%s", catalog, tenantID)
	edgesTable := fmt.Sprintf("%s.memory_edges_%s", catalog, tenantID)

	if err := persistTable(ctx, sink, nodesTable, s.nodes.table, tenantID, maxRetries); err != nil {
		return err
	}
	return persistTable(ctx, sink, edgesTable, s.nodes.edges, tenantID, maxRetries)
}

func persistTable(ctx context.Context, sink AnalyticalSink, targetTable, sourceTable, tenantID string, maxRetries int) error {
	if err := sink.CreateTableIfNotExists(ctx, targetTable); err != nil {
		return govern.New(govern.KindAnalyticalSink, "creating table %s: %v", targetTable, err)
	}

	backoff := 100 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := writeTable(ctx, sink, targetTable, sourceTable, tenantID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrOptimisticConflict) {
			return govern.New(govern.KindAnalyticalSink, "writing table %s: %v", targetTable, err)
		}
		if attempt >= maxRetries {
			return govern.New(govern.KindAnalyticalSink, "writing table %s: exhausted %d retries on optimistic conflict", targetTable, maxRetries)
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}

func writeTable(ctx context.Context, sink AnalyticalSink, targetTable, sourceTable, tenantID string) error {
	if err := sink.DeleteAll(ctx, targetTable); err != nil {
		return err
	}
	sourceQuery := fmt.Sprintf("SELECT * FROM %s WHERE tenant_id = '%s'", sourceTable, tenantID)
	return sink.InsertFromSelect(ctx, targetTable, sourceQuery)
}
