// Command aeterna is the operational CLI over the governance control
// plane: approval review, policy configuration, audit inspection, and the
// thin glue commands (memory/knowledge/policy/check/sync) spec.md names as
// external collaborators rather than core components.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		printErr(err)
		os.Exit(1)
	}
}
