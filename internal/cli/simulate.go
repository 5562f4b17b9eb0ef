package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"pool-block-alerts/internal/app"
)

var (
	simulateHeight  int64
	simulateLuck    string
	simulateReward  string
	simulateRuntime int64
)

var simulateBlockCmd = &cobra.Command{
	Use:   "simulate-block",
	Short: "模拟一个区块并发送对应等级的卡片",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateRuntime < 0 {
			return errors.New("--runtime 不能为负数")
		}

		reward, err := decimal.NewFromString(simulateReward)
		if err != nil {
			return fmt.Errorf("invalid --reward value: %w", err)
		}

		opts := app.SimulateOptions{
			Height:  simulateHeight,
			Reward:  reward,
			Runtime: simulateRuntime,
		}
		if simulateLuck != "" {
			luck, err := decimal.NewFromString(simulateLuck)
			if err != nil {
				return fmt.Errorf("invalid --luck value: %w", err)
			}
			opts.Luck = &luck
		}

		return getApp().SimulateBlock(cmd.Context(), opts)
	},
}

func init() {
	simulateBlockCmd.Flags().Int64Var(&simulateHeight, "height", 0, "区块高度")
	simulateBlockCmd.Flags().StringVar(&simulateLuck, "luck", "1", "幸运值比例 (1 = 100%)，留空表示无 luck (speedrun)")
	simulateBlockCmd.Flags().StringVar(&simulateReward, "reward", "3.125", "区块奖励")
	simulateBlockCmd.Flags().Int64Var(&simulateRuntime, "runtime", 600, "出块耗时（秒）")
}
