package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSyncCmd triggers a repository index sync (spec.md §1's repo manager
// collaborator). The wired repomanager.Manager is a no-op until a real
// indexer is configured.
func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <repo-id>",
		Short: "Sync a repository's indexed state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			result, err := d.repoManager.Sync(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResult(result, func() {
				fmt.Printf("synced %s: +%d files, -%d files, commit=%s\n",
					result.RepoID, result.FilesIndexed, result.FilesRemoved, result.CommitSHA)
			})
		},
	}
	return cmd
}
