// Package config materialises application configuration from file,
// environment, and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"pump-signals/internal/logging"
)

// Mode is the run mode reported by the health probe.
const (
	ModeDryRun  = "dry-run"
	ModeMainnet = "mainnet"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Helius    HeliusConfig    `mapstructure:"helius"`
	Filters   FiltersConfig   `mapstructure:"filters"`
	Signals   SignalsConfig   `mapstructure:"signals"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name string `mapstructure:"name"`
	Mode string `mapstructure:"mode"`
}

// ServerConfig governs the webhook HTTP listener.
type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	AuthSecret string `mapstructure:"auth_secret"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN runs
// the in-memory store.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// HeliusConfig covers provider access.
type HeliusConfig struct {
	APIKey     string `mapstructure:"api_key"`
	WSEndpoint string `mapstructure:"ws_endpoint"`
}

// FiltersConfig defines entry thresholds.
type FiltersConfig struct {
	MinLiquiditySOL float64 `mapstructure:"min_liquidity_sol"`
	MinProgressPct  float64 `mapstructure:"min_progress_pct"`
	MaxProgressPct  float64 `mapstructure:"max_progress_pct"`
}

// SignalsConfig governs signal lifecycle parameters.
type SignalsConfig struct {
	SimulatedBuySOL float64       `mapstructure:"simulated_buy_sol"`
	Expiry          time.Duration `mapstructure:"expiry"`
	DedupCapacity   int           `mapstructure:"dedup_capacity"`
}

// NotifyConfig defines notification routing.
type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// MetricsConfig governs the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// SchedulerConfig governs the expiry sweep cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIGNALBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pump-signals")
	v.SetDefault("app.mode", ModeDryRun)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("filters.min_liquidity_sol", 5.0)
	v.SetDefault("filters.min_progress_pct", 0.0)
	v.SetDefault("filters.max_progress_pct", 100.0)

	v.SetDefault("signals.simulated_buy_sol", 0.5)
	v.SetDefault("signals.expiry", "24h")
	v.SetDefault("signals.dedup_capacity", 10000)

	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("scheduler.interval", "10m")
	v.SetDefault("scheduler.startup_delay", "0s")
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
	if c.App.Mode != ModeDryRun && c.App.Mode != ModeMainnet {
		return fmt.Errorf("app.mode must be %q or %q", ModeDryRun, ModeMainnet)
	}
	if c.Signals.SimulatedBuySOL <= 0 {
		return fmt.Errorf("signals.simulated_buy_sol must be greater than zero")
	}
	if c.Signals.Expiry <= 0 {
		return fmt.Errorf("signals.expiry must be greater than zero")
	}
	if c.Filters.MinLiquiditySOL < 0 {
		return fmt.Errorf("filters.min_liquidity_sol cannot be negative")
	}
	if c.Filters.MinProgressPct > c.Filters.MaxProgressPct {
		return fmt.Errorf("filters.min_progress_pct cannot exceed filters.max_progress_pct")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token must be set when telegram is enabled")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id must be set when telegram is enabled")
		}
	}
	return nil
}
