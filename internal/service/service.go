package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pool-block-alerts/internal/alerting"
	"pool-block-alerts/internal/classify"
	"pool-block-alerts/internal/config"
	"pool-block-alerts/internal/daily"
	"pool-block-alerts/internal/dedup"
	"pool-block-alerts/internal/fetcher"
	"pool-block-alerts/internal/render"
	"pool-block-alerts/internal/scheduler"
	"pool-block-alerts/internal/state"
	"pool-block-alerts/internal/storage"
)

// MonthLayout is the payout query month format.
const MonthLayout = "2006-01"

// Renderer produces PNG cards.
type Renderer interface {
	BlockCard(ev fetcher.BlockEvent, tier classify.Tier) ([]byte, error)
	PayoutCard(ev fetcher.PayoutEvent) ([]byte, error)
}

// Options tune the monitor.
type Options struct {
	PoolName    string
	Coin        string
	ScanLimit   int
	FailureMode string
	Location    *time.Location
	Blocks      bool
	Payouts     bool
	LockKey     int64
	Policy      daily.Policy
}

// Deps are the collaborators of the monitor. History, Locker, Gate and
// Scheduler are optional.
type Deps struct {
	Blocks    fetcher.BlockFetcher
	Payouts   fetcher.PayoutFetcher
	Renderer  Renderer
	Notifier  alerting.Notifier
	State     state.Store
	History   storage.HistoryStore
	Locker    storage.AdvisoryLocker
	Gate      *daily.Gate
	Scheduler *scheduler.Scheduler
}

// Result summarises one batch.
type Result struct {
	Fetched   int
	New       int
	Delivered int
	Failed    int
	Watermark int64
}

// Service orchestrates fetching, classification, delivery and watermarking.
type Service struct {
	opts   Options
	deps   Deps
	logger zerolog.Logger
}

// New constructs the monitoring service.
func New(opts Options, deps Deps, logger zerolog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.FailureMode == "" {
		opts.FailureMode = config.FailureContinue
	}
	if opts.PoolName == "" {
		opts.PoolName = "ViaBTC"
	}
	if opts.Coin == "" {
		opts.Coin = "BTC"
	}
	return &Service{
		opts:   opts,
		deps:   deps,
		logger: logger.With().Str("component", "service").Logger(),
	}
}

// Run begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.deps.Scheduler.Run(ctx, func(ctx context.Context, tick time.Time) error {
		return s.RunOnce(ctx, tick)
	})
}

// RunOnce 执行一次完整的轮询：区块、收益。
func (s *Service) RunOnce(ctx context.Context, now time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Info().Time("now", now).Msg("skip run because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	var errs []error
	if s.opts.Blocks {
		if _, err := s.ProcessBlocks(ctx, now); err != nil {
			errs = append(errs, err)
		}
	}
	if s.opts.Payouts {
		if _, err := s.ProcessPayouts(ctx, now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProcessBlocks delivers blocks above the block watermark, then evaluates the
// daily recommendation over the fetched page.
func (s *Service) ProcessBlocks(ctx context.Context, now time.Time) (Result, error) {
	if s.deps.Blocks == nil {
		return Result{}, fmt.Errorf("block fetcher not configured")
	}
	events, err := s.deps.Blocks.FetchBlocks(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch blocks: %w", err)
	}

	wm := state.NewWatermark(s.deps.State, state.KeyLastBlockHeight)
	res, batchErr := deliver(ctx, s, wm, dedup.Limit(events, s.opts.ScanLimit), func(ctx context.Context, ev fetcher.BlockEvent) error {
		tier, err := s.NotifyBlock(ctx, ev)
		if err != nil {
			return err
		}
		s.recordBlock(ctx, ev, tier)
		return nil
	})
	res.Fetched = len(events)

	s.logger.Info().
		Int("fetched", res.Fetched).
		Int("new", res.New).
		Int("delivered", res.Delivered).
		Int("failed", res.Failed).
		Int64("watermark", res.Watermark).
		Msg("block batch processed")

	if batchErr != nil {
		return res, batchErr
	}
	if err := s.recommend(ctx, now, events); err != nil {
		return res, err
	}
	return res, nil
}

// ProcessPayouts delivers payouts of the current month above the payout watermark.
func (s *Service) ProcessPayouts(ctx context.Context, now time.Time) (Result, error) {
	if s.deps.Payouts == nil {
		return Result{}, fmt.Errorf("payout fetcher not configured")
	}
	month := now.In(s.opts.Location).Format(MonthLayout)
	events, err := s.deps.Payouts.FetchPayouts(ctx, month)
	if err != nil {
		return Result{}, fmt.Errorf("fetch payouts %s: %w", month, err)
	}

	wm := state.NewWatermark(s.deps.State, state.KeyLastPayoutHeight)
	res, batchErr := deliver(ctx, s, wm, events, func(ctx context.Context, ev fetcher.PayoutEvent) error {
		if err := s.NotifyPayout(ctx, ev); err != nil {
			return err
		}
		s.recordPayout(ctx, ev)
		return nil
	})
	res.Fetched = len(events)

	s.logger.Info().
		Str("month", month).
		Int("fetched", res.Fetched).
		Int("new", res.New).
		Int("delivered", res.Delivered).
		Int("failed", res.Failed).
		Int64("watermark", res.Watermark).
		Msg("payout batch processed")
	return res, batchErr
}

// NotifyBlock classifies, renders and sends a single block card.
func (s *Service) NotifyBlock(ctx context.Context, ev fetcher.BlockEvent) (classify.Tier, error) {
	tier := classify.Classify(ev.Luck, ev.Runtime)
	if s.deps.Renderer == nil || s.deps.Notifier == nil {
		return tier, fmt.Errorf("renderer or notifier not configured")
	}

	card, err := s.deps.Renderer.BlockCard(ev, tier)
	if err != nil {
		return tier, fmt.Errorf("render block %d: %w", ev.Height, err)
	}
	msg := alerting.Message{
		Text:      render.BlockCaption(tier),
		Photo:     card,
		PhotoName: fmt.Sprintf("block_%d.png", ev.Height),
	}
	if err := s.deps.Notifier.Notify(ctx, msg); err != nil {
		return tier, fmt.Errorf("send block %d: %w", ev.Height, err)
	}

	s.logger.Info().
		Int64("height", ev.Height).
		Str("tier", string(tier)).
		Str("luck_pct", classify.LuckPercent(ev.Luck)).
		Msg("block notified")
	return tier, nil
}

// NotifyPayout sends a payout card, or the caption alone when the card
// cannot be rendered.
func (s *Service) NotifyPayout(ctx context.Context, ev fetcher.PayoutEvent) error {
	if s.deps.Notifier == nil {
		return fmt.Errorf("notifier not configured")
	}
	msg := alerting.Message{
		Text:      render.PayoutCaption(ev, s.opts.PoolName, s.opts.Coin),
		ParseMode: "Markdown",
	}

	if s.deps.Renderer != nil {
		card, err := s.deps.Renderer.PayoutCard(ev)
		if err != nil {
			s.logger.Warn().Err(err).Int64("height", ev.Height).Msg("payout card failed, sending text only")
		} else {
			msg.Photo = card
			msg.PhotoName = fmt.Sprintf("payout_%d.png", ev.Height)
		}
	}

	if err := s.deps.Notifier.Notify(ctx, msg); err != nil {
		return fmt.Errorf("send payout %d: %w", ev.Height, err)
	}
	s.logger.Info().Int64("height", ev.Height).Str("profit", ev.Profit.String()).Msg("payout notified")
	return nil
}

// deliver sends every event above the watermark in ascending height order.
// The watermark only moves across the leading run of successes, so a failed
// height stays above it and is retried by the next batch.
func deliver[E dedup.Heighted](ctx context.Context, s *Service, wm *state.Watermark, events []E, send func(context.Context, E) error) (Result, error) {
	current, err := wm.Load(ctx)
	if err != nil {
		return Result{}, err
	}

	fresh := dedup.NewerThan(events, current)
	res := Result{New: len(fresh), Watermark: current}
	if len(fresh) == 0 {
		return res, nil
	}

	gap := false
	for _, ev := range fresh {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		height := ev.EventHeight()
		if err := send(ctx, ev); err != nil {
			res.Failed++
			s.logger.Error().Err(err).Str("key", wm.Key()).Int64("height", height).Msg("event delivery failed")
			if s.opts.FailureMode == config.FailureHalt {
				return res, fmt.Errorf("%s halted at %d: %w", wm.Key(), height, err)
			}
			gap = true
			continue
		}
		res.Delivered++

		if gap {
			continue
		}
		if _, err := wm.Advance(ctx, height); err != nil {
			return res, fmt.Errorf("advance %s to %d: %w", wm.Key(), height, err)
		}
		res.Watermark = height
	}
	return res, nil
}

func (s *Service) recommend(ctx context.Context, now time.Time, events []fetcher.BlockEvent) error {
	if s.deps.Gate == nil || s.deps.Notifier == nil {
		return nil
	}

	timestamps := make([]int64, 0, len(events))
	for _, ev := range events {
		timestamps = append(timestamps, ev.Timestamp)
	}

	_, err := s.deps.Gate.Fire(ctx, now, func(ctx context.Context) error {
		rec := daily.Recommend(timestamps, now.In(s.opts.Location), s.opts.Policy)
		s.logger.Info().
			Int("blocks", rec.Blocks).
			Str("value", rec.Value.String()).
			Str("scheme", string(rec.Scheme)).
			Msg("daily recommendation computed")
		return s.deps.Notifier.Notify(ctx, alerting.Message{Text: rec.Message()})
	})
	if err != nil {
		return fmt.Errorf("daily recommendation: %w", err)
	}
	return nil
}

func (s *Service) recordBlock(ctx context.Context, ev fetcher.BlockEvent, tier classify.Tier) {
	if s.deps.History == nil {
		return
	}
	rec := storage.BlockRecord{
		Height:  ev.Height,
		Tier:    string(tier),
		Luck:    ev.Luck,
		Reward:  ev.Reward,
		Runtime: ev.Runtime,
		FoundAt: time.Unix(ev.Timestamp, 0).UTC(),
	}
	if err := s.deps.History.RecordBlock(ctx, rec); err != nil {
		s.logger.Error().Err(err).Int64("height", ev.Height).Msg("failed to persist block record")
	}
}

func (s *Service) recordPayout(ctx context.Context, ev fetcher.PayoutEvent) {
	if s.deps.History == nil {
		return
	}
	rec := storage.PayoutRecord{Height: ev.Height, Profit: ev.Profit, Date: ev.Date}
	if err := s.deps.History.RecordPayout(ctx, rec); err != nil {
		s.logger.Error().Err(err).Int64("height", ev.Height).Msg("failed to persist payout record")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.deps.Locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.deps.Locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
