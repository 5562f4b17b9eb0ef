package app

import (
	"context"
	"errors"
	"time"

	"pool-block-alerts/internal/dedup"
	"pool-block-alerts/internal/service"
	"pool-block-alerts/internal/state"
)

// Sync marks everything currently listed by the pool as seen without sending
// notifications, so a fresh install does not replay the latest page.
func (a *App) Sync(ctx context.Context, opts SyncOptions) error {
	if !opts.Blocks && !opts.Payouts {
		return errors.New("nothing to sync: enable --blocks and/or --payouts")
	}

	sess, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if opts.DryRun {
		a.Logger.Warn().Msg("sync dry-run：不会写入 watermark")
	}

	pool := a.newFetcher()
	now := time.Now()

	if opts.Blocks {
		events, err := pool.FetchBlocks(ctx)
		if err != nil {
			return err
		}
		if err := a.syncWatermark(ctx, sess.state, state.KeyLastBlockHeight, dedup.Heights(events), opts.DryRun); err != nil {
			return err
		}
	}

	if opts.Payouts {
		month := now.In(a.location()).Format(service.MonthLayout)
		events, err := pool.FetchPayouts(ctx, month)
		if err != nil {
			return err
		}
		if err := a.syncWatermark(ctx, sess.state, state.KeyLastPayoutHeight, dedup.Heights(events), opts.DryRun); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) syncWatermark(ctx context.Context, st state.Store, key string, heights []int64, dryRun bool) error {
	wm := state.NewWatermark(st, key)
	current, err := wm.Load(ctx)
	if err != nil {
		return err
	}

	top := current
	for _, h := range heights {
		if h > top {
			top = h
		}
	}

	logEvent := a.Logger.Info().Str("key", key).Int64("current", current).Int64("top", top).Int("listed", len(heights))
	if dryRun || top == current {
		logEvent.Msg("watermark unchanged")
		return nil
	}
	if _, err := wm.Advance(ctx, top); err != nil {
		return err
	}
	logEvent.Msg("watermark synced")
	return nil
}
