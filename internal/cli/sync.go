package cli

import (
	"github.com/spf13/cobra"

	"pool-block-alerts/internal/app"
)

var (
	syncBlocks  bool
	syncPayouts bool
	syncDryRun  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mark the pool's current listings as seen without notifying",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SyncOptions{
			Blocks:  syncBlocks,
			Payouts: syncPayouts,
			DryRun:  syncDryRun,
		}
		return getApp().Sync(cmd.Context(), opts)
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncBlocks, "blocks", true, "Sync the block watermark")
	syncCmd.Flags().BoolVar(&syncPayouts, "payouts", true, "Sync the payout watermark")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Log the heights without writing state")
}
