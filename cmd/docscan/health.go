package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docscan/internal/api"
)

var healthWait time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	Long: `Query the backend healthcheck.

With --wait the check is retried once a second until it passes or the
duration elapses, which is useful in scripts that start the backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession()
		if err != nil {
			return err
		}
		if healthWait > 0 {
			if err := s.client.WaitHealthy(ctx, healthWait, time.Second); err != nil {
				return err
			}
		}
		resp, err := s.client.Healthcheck(ctx)
		if err := s.reporter().Report(ctx, "", "", err); err != nil {
			return err
		}
		return api.Output(map[string]string{
			"base_url": s.client.BaseURL(),
			"status":   resp.Status,
		})
	},
}

func init() {
	healthCmd.Flags().DurationVar(&healthWait, "wait", 0, "keep retrying for this long")
	rootCmd.AddCommand(healthCmd)
}
