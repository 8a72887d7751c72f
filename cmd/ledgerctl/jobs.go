package main

import (
	"encoding/json"
	"fmt"
	"time"

	"coin-ledger/internal/app"
	"coin-ledger/internal/core/domain"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newJobCmd("sweep", "Expire coins past their expiration date", domain.JobSweepExpired))
	rootCmd.AddCommand(newJobCmd("warn", "Notify users whose coins expire soon", domain.JobExpiryWarnings))
	rootCmd.AddCommand(newJobCmd("grant-allowances", "Grant this month's subscription allowances", domain.JobMonthlyAllowance))
}

// newJobCmd builds a command that runs one job to completion and prints its
// summary as JSON. Reruns are safe: sweeps are idempotent and allowances
// are keyed per month.
func newJobCmd(use, short string, job domain.JobName) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close(30 * time.Second)

			summary, err := a.Jobs.Run(cmd.Context(), job)
			if summary != nil {
				out, _ := json.MarshalIndent(summary, "", "  ")
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return err
		},
	}
}
