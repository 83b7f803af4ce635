package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/layer-3/hackledger/core"
	"github.com/layer-3/hackledger/internal/config"
	"github.com/spf13/cobra"
)

func syncCommand() *cobra.Command {
	var hackathonID uint64
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			logger := commonRun(cfg)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var report *core.SyncReport
			if hackathonID == 0 {
				report, err = a.sync.SyncAll(cmd.Context())
			} else {
				report, err = a.sync.SyncHackathon(cmd.Context(), hackathonID)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().Uint64Var(&hackathonID, "hackathon", 0, "reconcile a single hackathon instead of the whole ledger")
	return cmd
}
