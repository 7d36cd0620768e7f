package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type statusResult struct {
	DeploymentMode  string `json:"deployment_mode"`
	StorePath       string `json:"store_path"`
	StoreOK         bool   `json:"store_ok"`
	RedisConfigured bool   `json:"redis_configured"`
	RedisOK         bool   `json:"redis_ok"`
}

// newStatusCmd reports the local process's connectivity to its store and
// optional lock backend, independent of any one tenant's approval queue
// (contrast with `govern status`).
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report store and lock-backend connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			ctx := cmd.Context()

			res := statusResult{
				DeploymentMode: d.cfg.DeploymentMode,
				StorePath:      d.cfg.StorePath,
			}
			res.StoreOK = d.db.DB.PingContext(ctx) == nil
			if d.redis != nil {
				res.RedisConfigured = true
				res.RedisOK = d.redis.Ping(ctx).Err() == nil
			}

			return printResult(res, func() {
				fmt.Printf("mode=%s store=%s store_ok=%v redis_configured=%v redis_ok=%v\n",
					res.DeploymentMode, res.StorePath, res.StoreOK, res.RedisConfigured, res.RedisOK)
			})
		},
	}
}
