package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kikokikok/aeterna-sub000/pkg/graph"
)

// newMemoryCmd wraps the graph store's source-memory-tagged nodes: a
// memory is a node whose SourceMemoryID links it back to an upstream
// memory system (spec.md §3 Graph Node).
func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Add, search, and forget memory-backed graph nodes",
	}
	cmd.AddCommand(newMemoryAddCmd(), newMemorySearchCmd(), newMemoryForgetCmd())
	return cmd
}

type memoryNodeResult struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	SourceMemoryID string `json:"source_memory_id,omitempty"`
}

func newMemoryAddCmd() *cobra.Command {
	var label, properties, sourceMemoryID string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a memory-backed node to the graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := tenantContext()
			if err != nil {
				return err
			}
			if label == "" {
				return fmt.Errorf("--label is required")
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

			n := graph.Node{
				ID:         uuid.NewString(),
				Label:      label,
				Properties: props,
				TenantID:   tc.TenantID,
			}
			if sourceMemoryID != "" {
				n.SourceMemoryID = &sourceMemoryID
			}
			if err := d.graphSvc.AddNode(cmd.Context(), graph.Ctx(tc), n); err != nil {
				return err
			}

			res := memoryNodeResult{ID: n.ID, Label: n.Label, SourceMemoryID: sourceMemoryID}
			return printResult(res, func() {
				fmt.Printf("added node %s (%s)\n", res.ID, res.Label)
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "node label (required)")
	cmd.Flags().StringVar(&properties, "properties", "", "JSON object of node properties")
	cmd.Flags().StringVar(&sourceMemoryID, "source-memory-id", "", "upstream memory system id")
	return cmd
}

func newMemorySearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Substring-search memory-backed node labels and properties",
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

			nodes, err := d.graphSvc.SearchNodes(cmd.Context(), graph.Ctx(tc), args[0], limit)
			if err != nil {
				return err
			}
			return printResult(nodes, func() {
				for _, n := range nodes {
					fmt.Printf("%s  %s\n", n.ID, n.Label)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	return cmd
}

type memoryForgetResult struct {
	SourceMemoryID string `json:"source_memory_id"`
	NodesRemoved   int    `json:"nodes_removed"`
}

func newMemoryForgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forget <source-memory-id>",
		Short: "Soft-delete every node tagged with the given source memory id",
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

			count, err := d.graphSvc.SoftDeleteNodesBySourceMemory(cmd.Context(), graph.Ctx(tc), args[0])
			if err != nil {
				return err
			}
			res := memoryForgetResult{SourceMemoryID: args[0], NodesRemoved: count}
			return printResult(res, func() {
				fmt.Printf("forgot %d node(s) tagged %s\n", res.NodesRemoved, res.SourceMemoryID)
			})
		},
	}
	return cmd
}
