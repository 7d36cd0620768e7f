package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var hintLines = []string{
	"govern status --json             summarize pending approvals and today's decisions",
	"govern pending --mine            list requests awaiting your decision",
	"govern approve <id>              record an approval",
	"govern reject <id> --reason ...  record a rejection (reason required)",
	"govern configure --template ...  apply standard|strict|permissive",
	"govern audit --since 24h         inspect recent audit entries",
	"memory add --label ...           add a source-memory-tagged node",
	"knowledge link <src> <dst>       add an edge between two nodes",
	"policy propose <text> --unit ... translate free text into a policy change request",
	"check --unit ... --content ...   run a drift check against effective policy",
	"sync <repo-id>                   re-index a repository",
	"status                           report local store/lock connectivity",
	"init --company ...               bootstrap a new tenant's root unit",
}

// newHintsCmd prints the command-surface cheat sheet spec.md §6 names.
func newHintsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hints",
		Short: "Print a quick-reference cheat sheet of common commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(hintLines, func() {
				for _, line := range hintLines {
					fmt.Println(line)
				}
			})
		},
	}
}
