package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pool-block-alerts/internal/alerting"
	"pool-block-alerts/internal/classify"
	"pool-block-alerts/internal/config"
	"pool-block-alerts/internal/daily"
	"pool-block-alerts/internal/fetcher"
	"pool-block-alerts/internal/render"
	"pool-block-alerts/internal/scheduler"
	"pool-block-alerts/internal/service"
	"pool-block-alerts/internal/state"
	"pool-block-alerts/internal/storage"
	"pool-block-alerts/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) location() *time.Location {
	loc, err := a.Config.Location()
	if err != nil {
		return time.UTC
	}
	return loc
}

func (a *App) newFetcher() *fetcher.ViaBTC {
	cfg := a.Config.Pool
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	return fetcher.NewViaBTC(fetcher.ViaBTCOptions{
		BaseURL:           cfg.BaseURL,
		Coin:              cfg.Coin,
		BlockLimit:        cfg.BlockLimit,
		PayoutLimit:       cfg.PayoutLimit,
		Timeout:           cfg.RequestTimeout,
		UserAgent:         userAgent,
		Cookie:            cfg.Cookie,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Location:          a.location(),
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	a.Logger.Warn().Msg("telegram disabled; notifications are only logged")
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) newRenderer() *render.Renderer {
	return render.New(render.Options{
		Coin:             a.Config.Pool.Coin,
		PayoutBackground: a.Config.Render.PayoutBackground,
	}, render.NewDirPicker(a.Config.Render.BackgroundsDir), a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// openState picks the watermark backend. The postgres backend reuses store.
func (a *App) openState(store *storage.Store) (state.Store, func(), error) {
	cfg := a.Config.State
	switch cfg.Backend {
	case config.BackendMemory:
		return state.NewMemory(), nil, nil
	case config.BackendFile:
		st, err := state.NewFile(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	case config.BackendSQLite:
		st, err := state.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case config.BackendPostgres:
		if store == nil {
			return nil, nil, errors.New("state.backend=postgres requires database.dsn")
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown state.backend %q", cfg.Backend)
	}
}

// session holds the resources opened for one command.
type session struct {
	store   *storage.Store
	state   state.Store
	closers []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func (a *App) openSession(ctx context.Context) (*session, error) {
	sess := &session{}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		sess.closers = append(sess.closers, closeStore)
	}
	sess.store = store

	st, closeState, err := a.openState(store)
	if err != nil {
		sess.Close()
		return nil, err
	}
	if closeState != nil {
		sess.closers = append(sess.closers, closeState)
	}
	sess.state = st
	return sess, nil
}

func (a *App) policy() daily.Policy {
	cfg := a.Config.Recommendation
	return daily.Policy{
		PerBlock:     decimal.NewFromFloat(cfg.PerBlock),
		Baseline:     decimal.NewFromFloat(cfg.Baseline),
		PPLNSVerdict: cfg.PPLNSVerdict,
		PPSVerdict:   cfg.PPSVerdict,
	}
}

func (a *App) newService(sess *session, sched *scheduler.Scheduler) *service.Service {
	pool := a.newFetcher()
	loc := a.location()

	deps := service.Deps{
		Blocks:    pool,
		Payouts:   pool,
		Renderer:  a.newRenderer(),
		Notifier:  a.newNotifier(),
		State:     sess.state,
		Scheduler: sched,
	}
	if sess.store != nil {
		deps.History = sess.store
		deps.Locker = sess.store
	}
	if a.Config.Recommendation.Enabled {
		deps.Gate = daily.NewGate(sess.state, daily.Window{
			Hour: a.Config.Recommendation.Hour,
			Span: a.Config.Recommendation.Window,
		}, loc, a.Logger)
	}

	return service.New(service.Options{
		PoolName:    a.Config.Pool.Name,
		Coin:        a.Config.Pool.Coin,
		ScanLimit:   a.Config.Pool.BlockScanLimit,
		FailureMode: a.Config.Monitor.FailureMode,
		Location:    loc,
		Blocks:      a.Config.Monitor.Blocks,
		Payouts:     a.Config.Monitor.Payouts,
		LockKey:     a.Config.Scheduler.AdvisoryLockKey,
		Policy:      a.policy(),
	}, deps, a.Logger)
}

// RunOnce performs a single polling batch over the enabled streams.
func (a *App) RunOnce(ctx context.Context) error {
	sess, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	return a.newService(sess, nil).RunOnce(ctx, time.Now())
}

// ProcessBlocks runs only the block stream (and the daily recommendation).
func (a *App) ProcessBlocks(ctx context.Context) error {
	sess, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	_, err = a.newService(sess, nil).ProcessBlocks(ctx, time.Now())
	return err
}

// ProcessPayouts runs only the payout stream.
func (a *App) ProcessPayouts(ctx context.Context) error {
	sess, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	_, err = a.newService(sess, nil).ProcessPayouts(ctx, time.Now())
	return err
}

// Watch executes the long-running polling loop.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sess, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	if sess.store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; history and advisory lock disabled")
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToTick,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)

	svc := a.newService(sess, sched)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting pool watcher")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("pool watcher stopped")
	return nil
}

// ExportOptions hold parameters for exporting block history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	Window    time.Duration
	Tier      classify.Tier
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit   int
	Payouts bool
}

// SyncOptions configure the sync job.
type SyncOptions struct {
	Blocks  bool
	Payouts bool
	DryRun  bool
}
