package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	stateStream string
	stateHeight int64
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show persisted watermarks and the recommendation marker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowState(cmd.Context())
	},
}

var stateSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Overwrite a stream watermark",
	RunE: func(cmd *cobra.Command, args []string) error {
		if stateHeight < 0 {
			return fmt.Errorf("--height cannot be negative")
		}
		return getApp().SetWatermark(cmd.Context(), stateStream, stateHeight)
	},
}

func init() {
	stateSetCmd.Flags().StringVar(&stateStream, "stream", "blocks", "Stream to update (blocks or payouts)")
	stateSetCmd.Flags().Int64Var(&stateHeight, "height", 0, "New watermark height")
	_ = stateSetCmd.MarkFlagRequired("height")
	stateCmd.AddCommand(stateSetCmd)
}
