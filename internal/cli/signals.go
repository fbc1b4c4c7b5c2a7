package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pump-signals/internal/app"
)

var (
	signalsHours  int
	signalsLimit  int
	signalsStatus string
	signalsToken  string
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Display recent signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		if signalsHours <= 0 {
			return fmt.Errorf("--hours must be greater than zero")
		}
		if signalsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.SignalsOptions{
			Hours:  signalsHours,
			Limit:  signalsLimit,
			Status: signalsStatus,
			Token:  signalsToken,
		}

		return getApp().Signals(cmd.Context(), opts)
	},
}

func init() {
	signalsCmd.Flags().IntVar(&signalsHours, "hours", 24, "Look back this many hours")
	signalsCmd.Flags().IntVar(&signalsLimit, "limit", 50, "Number of signals to display")
	signalsCmd.Flags().StringVar(&signalsStatus, "status", "", "Filter by status (pending, migrated, failed, expired)")
	signalsCmd.Flags().StringVar(&signalsToken, "token", "", "Show all signals for one token mint")
}
