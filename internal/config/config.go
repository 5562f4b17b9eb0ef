package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pool-block-alerts/internal/logging"
)

// Failure modes for a batch.
const (
	FailureContinue = "continue"
	FailureHalt     = "halt"
)

// State backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config materialises application configuration.
type Config struct {
	App            AppConfig            `mapstructure:"app"`
	Logging        logging.Config       `mapstructure:"logging"`
	Database       DatabaseConfig       `mapstructure:"database"`
	State          StateConfig          `mapstructure:"state"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	Pool           PoolConfig           `mapstructure:"pool"`
	Alerting       AlertingConfig       `mapstructure:"alerting"`
	Render         RenderConfig         `mapstructure:"render"`
	Monitor        MonitorConfig        `mapstructure:"monitor"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Export         ExportConfig         `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Timezone    string `mapstructure:"timezone"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// StateConfig selects where watermarks and the recommendation marker live.
type StateConfig struct {
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// SchedulerConfig governs the watch loop cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToTick     bool          `mapstructure:"align_to_tick"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
}

// PoolConfig captures mining-pool API access.
type PoolConfig struct {
	Name              string        `mapstructure:"name"`
	BaseURL           string        `mapstructure:"base_url"`
	Coin              string        `mapstructure:"coin"`
	BlockLimit        int           `mapstructure:"block_limit"`
	BlockScanLimit    int           `mapstructure:"block_scan_limit"`
	PayoutLimit       int           `mapstructure:"payout_limit"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	Cookie            string        `mapstructure:"cookie"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 推送参数。
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RenderConfig points at card backgrounds.
type RenderConfig struct {
	BackgroundsDir   string `mapstructure:"backgrounds_dir"`
	PayoutBackground string `mapstructure:"payout_background"`
}

// MonitorConfig toggles streams and the batch failure policy.
type MonitorConfig struct {
	Blocks      bool   `mapstructure:"blocks"`
	Payouts     bool   `mapstructure:"payouts"`
	FailureMode string `mapstructure:"failure_mode"`
}

// RecommendationConfig holds the daily PPS/PPLNS check.
type RecommendationConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Hour         int           `mapstructure:"hour"`
	Window       time.Duration `mapstructure:"window"`
	PerBlock     float64       `mapstructure:"per_block_value"`
	Baseline     float64       `mapstructure:"baseline"`
	PPLNSVerdict string        `mapstructure:"pplns_verdict"`
	PPSVerdict   string        `mapstructure:"pps_verdict"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("POOLWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindLegacyEnv(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// bindLegacyEnv keeps the plain TELEGRAM_* variables working next to the
// prefixed ones.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("alerting.telegram.bot_token", "POOLWATCH_ALERTING_TELEGRAM_BOT_TOKEN", "TELEGRAM_TOKEN")
	_ = v.BindEnv("alerting.telegram.chat_id", "POOLWATCH_ALERTING_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "poolwatch")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.timezone", "UTC")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.enabled", false)
	v.SetDefault("logging.file.path", "logs/poolwatch.log")
	v.SetDefault("logging.file.max_size_mb", 50)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.max_age_days", 30)

	v.SetDefault("state.backend", BackendFile)
	v.SetDefault("state.dir", "state")
	v.SetDefault("state.sqlite_path", "state/poolwatch.db")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_tick", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x706f6f6c))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", true)

	v.SetDefault("pool.name", "ViaBTC")
	v.SetDefault("pool.base_url", "https://www.viabtc.com")
	v.SetDefault("pool.coin", "BTC")
	v.SetDefault("pool.block_limit", 50)
	v.SetDefault("pool.block_scan_limit", 10)
	v.SetDefault("pool.payout_limit", 10)
	v.SetDefault("pool.request_timeout", "10s")
	v.SetDefault("pool.user_agent", "Mozilla/5.0")
	v.SetDefault("pool.requests_per_minute", 30)
	v.SetDefault("pool.cookie", "")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.telegram.enabled", true)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "20s")

	v.SetDefault("render.backgrounds_dir", "block_tier_backgrounds")
	v.SetDefault("render.payout_background", "earnings_bg.png")

	v.SetDefault("monitor.blocks", true)
	v.SetDefault("monitor.payouts", true)
	v.SetDefault("monitor.failure_mode", FailureContinue)

	v.SetDefault("recommendation.enabled", true)
	v.SetDefault("recommendation.hour", 20)
	v.SetDefault("recommendation.window", "5m")
	v.SetDefault("recommendation.per_block_value", 0.00002)
	v.SetDefault("recommendation.baseline", 0.0001)
	v.SetDefault("recommendation.pplns_verdict", "✅ PPLNS is ahead today, stay on PPLNS")
	v.SetDefault("recommendation.pps_verdict", "⚠️ PPS would have paid more today, consider switching to PPS")

	v.SetDefault("export.max_data_points", 10000)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Pool.BlockLimit <= 0 || c.Pool.PayoutLimit <= 0 {
		return fmt.Errorf("pool.block_limit and pool.payout_limit must be greater than zero")
	}
	if c.Pool.BlockScanLimit < 0 {
		return fmt.Errorf("pool.block_scan_limit cannot be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.State.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("state.backend=postgres requires database.dsn")
		}
	default:
		return fmt.Errorf("unknown state.backend %q", c.State.Backend)
	}

	switch c.Monitor.FailureMode {
	case FailureContinue, FailureHalt:
	default:
		return fmt.Errorf("monitor.failure_mode must be %q or %q", FailureContinue, FailureHalt)
	}

	if c.Recommendation.Enabled {
		if c.Recommendation.Hour < 0 || c.Recommendation.Hour > 23 {
			return fmt.Errorf("recommendation.hour must be within 0-23")
		}
		if c.Recommendation.Window <= 0 {
			return fmt.Errorf("recommendation.window must be greater than zero")
		}
		if c.Recommendation.PerBlock < 0 || c.Recommendation.Baseline < 0 {
			return fmt.Errorf("recommendation values cannot be negative")
		}
	}

	if c.Alerting.Enabled && c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// Location resolves app.timezone; "Local" uses the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app.timezone: %w", err)
	}
	return loc, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
