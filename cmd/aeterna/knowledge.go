package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kikokikok/aeterna-sub000/pkg/graph"
)

// newKnowledgeCmd exposes the graph store's general-purpose node/edge
// operations (spec.md §4.2), distinct from memory's source-memory-tagged
// subset.
func newKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Inspect and extend the tenant's knowledge graph",
	}
	cmd.AddCommand(
		newKnowledgeLinkCmd(),
		newKnowledgeNeighborsCmd(),
		newKnowledgeStatsCmd(),
	)
	return cmd
}

func newKnowledgeLinkCmd() *cobra.Command {
	var relation, properties string
	var weight float64
	cmd := &cobra.Command{
		Use:   "link <source-node-id> <target-node-id>",
		Short: "Add an edge between two existing nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := tenantContext()
			if err != nil {
				return err
			}
			if relation == "" {
				return fmt.Errorf("--relation is required")
			}
			props := json.RawMessage("{}")
			if properties != "" {
				if !json.Valid([]byte(properties)) {
					return fmt.Errorf("--properties must be valid JSON")
				}
				props = json.RawMessage(properties)
			}

			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			e := graph.Edge{
				ID:         uuid.NewString(),
				SourceID:   args[0],
				TargetID:   args[1],
				Relation:   relation,
				Properties: props,
				Weight:     weight,
				TenantID:   tc.TenantID,
			}
			if err := d.graphSvc.AddEdge(cmd.Context(), graph.Ctx(tc), e); err != nil {
				return err
			}
			return printResult(e, func() {
				fmt.Printf("linked %s -[%s]-> %s\n", e.SourceID, e.Relation, e.TargetID)
			})
		},
	}
	cmd.Flags().StringVar(&relation, "relation", "", "edge relation name (required)")
	cmd.Flags().StringVar(&properties, "properties", "", "JSON object of edge properties")
	cmd.Flags().Float64Var(&weight, "weight", 1.0, "edge weight")
	return cmd
}

func newKnowledgeNeighborsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neighbors <node-id>",
		Short: "List a node's non-deleted incident edges and their far endpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := tenantContext()
			if err != nil {
				return err
			}
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			pairs, err := d.graphSvc.GetNeighbors(cmd.Context(), graph.Ctx(tc), args[0])
			if err != nil {
				return err
			}
			return printResult(pairs, func() {
				for _, p := range pairs {
					fmt.Printf("-[%s]-> %s (%s)\n", p.Edge.Relation, p.Node.ID, p.Node.Label)
				}
			})
		},
	}
	return cmd
}

func newKnowledgeStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print node/edge counts for the tenant's graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := tenantContext()
			if err != nil {
				return err
			}
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			stats, err := d.graphSvc.GetStats(cmd.Context(), graph.Ctx(tc))
			if err != nil {
				return err
			}
			return printResult(stats, func() {
				fmt.Printf("nodes=%d edges=%d\n", stats.NodeCount, stats.EdgeCount)
			})
		},
	}
	return cmd
}
