package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pool-block-alerts/internal/fetcher"
	"pool-block-alerts/internal/state"
)

// SimulateOptions describe a synthetic block.
type SimulateOptions struct {
	Height  int64
	Luck    *decimal.Decimal
	Reward  decimal.Decimal
	Runtime int64
}

// SimulateBlock 构造一个模拟区块并走完整的分类、渲染、推送流程，不写入 watermark。
func (a *App) SimulateBlock(ctx context.Context, opts SimulateOptions) error {
	ev := fetcher.BlockEvent{
		Height:    opts.Height,
		Reward:    opts.Reward,
		Runtime:   opts.Runtime,
		Timestamp: time.Now().Unix(),
	}
	if opts.Luck != nil {
		ev.Luck = decimal.NewNullDecimal(*opts.Luck)
	}

	sess := &session{state: state.NewMemory()}
	svc := a.newService(sess, nil)

	tier, err := svc.NotifyBlock(ctx, ev)
	if err != nil {
		return err
	}
	a.Logger.Info().Int64("height", ev.Height).Str("tier", string(tier)).Msg("simulated block sent")
	return nil
}
