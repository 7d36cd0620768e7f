package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kikokikok/aeterna-sub000/pkg/tenant"
)

var (
	flagTenant   string
	flagUser     string
	flagPrincKnd string
	flagJSON     bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aeterna",
		Short:         "Governance control plane for tenant-isolated knowledge graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagTenant, "tenant", os.Getenv("AETERNA_TENANT"), "tenant id")
	root.PersistentFlags().StringVarP(&flagUser, "user", "u", os.Getenv("AETERNA_USER"), "principal id")
	root.PersistentFlags().StringVar(&flagPrincKnd, "principal-kind", "user", "principal kind: user|agent|system")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit machine-readable JSON")

	root.AddCommand(
		newGovernCmd(),
		newMemoryCmd(),
		newKnowledgeCmd(),
		newPolicyCmd(),
		newCheckCmd(),
		newSyncCmd(),
		newStatusCmd(),
		newInitCmd(),
		newHintsCmd(),
	)
	return root
}

// tenantContext builds the Tenant Context every engine call carries, from
// the root command's persistent flags.
func tenantContext() (tenant.Context, error) {
	if flagTenant == "" {
		return tenant.Context{}, fmt.Errorf("--tenant is required (or set AETERNA_TENANT)")
	}
	kind := flagPrincKnd
	if kind == "" {
		kind = "user"
	}
	return tenant.Context{TenantID: flagTenant, PrincipalID: flagUser, PrincipalKind: kind}, nil
}

// printResult renders v as JSON when --json is set, otherwise as human
// text via textFn. textFn may be nil, in which case non-JSON mode prints
// nothing beyond what the caller already printed.
func printResult(v any, textFn func()) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	if textFn != nil {
		textFn()
	}
	return nil
}

// errJSON is the {success:false, error:{kind,message}} envelope spec.md §7
// requires CLI JSON mode to return on failure.
type errJSON struct {
	Success bool      `json:"success"`
	Error   errDetail `json:"error"`
}

type errDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func printErr(err error) {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(errJSON{Error: errDetail{Kind: errKind(err), Message: err.Error()}})
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
