package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pool-block-alerts/internal/app"
)

var (
	showLimit   int
	showPayouts bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recently notified blocks or payouts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:   showLimit,
			Payouts: showPayouts,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showPayouts, "payouts", false, "Show payouts instead of blocks")
}
