package cli

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll blocks and payouts once, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunOnce(cmd.Context())
	},
}

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Poll the block stream once (includes the daily recommendation)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ProcessBlocks(cmd.Context())
	},
}

var payoutsCmd = &cobra.Command{
	Use:   "payouts",
	Short: "Poll this month's payouts once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ProcessPayouts(cmd.Context())
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll continuously on the scheduler interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Watch(cmd.Context())
	},
}
