// Package config provides configuration management for the execution engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Capital     CapitalConfig     `mapstructure:"capital"`
	Selection   SelectionConfig   `mapstructure:"selection"`
	RateLimits  RateLimitConfig   `mapstructure:"rate_limits"`
	Store       StoreConfig       `mapstructure:"store"`
	MarketData  MarketDataConfig  `mapstructure:"market_data"`
	Predictions PredictionsConfig `mapstructure:"predictions"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// CapitalConfig holds capital allocation configuration.
type CapitalConfig struct {
	TotalCapital             float64 `mapstructure:"total_capital"`
	MaxSinglePositionPercent float64 `mapstructure:"max_single_position_percent"`
	MaxSectorExposurePercent float64 `mapstructure:"max_sector_exposure_percent"`
	MaxSimultaneousTrades    int     `mapstructure:"max_simultaneous_trades"`
	CapitalSplitPercent      float64 `mapstructure:"capital_split_percent"`
}

// SelectionConfig holds trade selection configuration.
type SelectionConfig struct {
	WindowSeconds    int     `mapstructure:"window_seconds"`
	MinScore         float64 `mapstructure:"min_score"`
	SignalTTLMinutes int     `mapstructure:"signal_ttl_minutes"`
}

// Window returns the selection window as a duration.
func (s SelectionConfig) Window() time.Duration {
	return time.Duration(s.WindowSeconds) * time.Second
}

// SignalTTL returns the signal time-to-live as a duration.
func (s SelectionConfig) SignalTTL() time.Duration {
	return time.Duration(s.SignalTTLMinutes) * time.Minute
}

// RateLimitConfig holds per-class broker rate limits in permits per second.
type RateLimitConfig struct {
	OrdersPerSecond     float64 `mapstructure:"orders_per_second"`
	QuotesPerSecond     float64 `mapstructure:"quotes_per_second"`
	PositionsPerSecond  float64 `mapstructure:"positions_per_second"`
	MarketDataPerSecond float64 `mapstructure:"market_data_per_second"`
	AcquireTimeoutSecs  int     `mapstructure:"acquire_timeout_seconds"`
}

// AcquireTimeout returns the default permit wait budget.
func (r RateLimitConfig) AcquireTimeout() time.Duration {
	return time.Duration(r.AcquireTimeoutSecs) * time.Second
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	JournalPath   string `mapstructure:"journal_path"`
}

// MarketDataConfig holds candle and reference data configuration.
type MarketDataConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

// CacheTTL returns the candle cache time-to-live.
func (m MarketDataConfig) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLMinutes) * time.Minute
}

// Timeout returns the HTTP request timeout.
func (m MarketDataConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// PredictionsConfig holds ML prediction reader configuration.
type PredictionsConfig struct {
	KeyPrefix     string `mapstructure:"key_prefix"`
	MaxAgeMinutes int    `mapstructure:"max_age_minutes"`
}

// MaxAge returns the prediction freshness budget.
func (p PredictionsConfig) MaxAge() time.Duration {
	return time.Duration(p.MaxAgeMinutes) * time.Minute
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/signal-engine"
	}
	return filepath.Join(home, ".config", "signal-engine")
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Capital: CapitalConfig{
			TotalCapital:             1000000,
			MaxSinglePositionPercent: 10,
			MaxSectorExposurePercent: 30,
			MaxSimultaneousTrades:    3,
			CapitalSplitPercent:      45,
		},
		Selection: SelectionConfig{
			WindowSeconds:    120,
			MinScore:         2,
			SignalTTLMinutes: 15,
		},
		RateLimits: RateLimitConfig{
			OrdersPerSecond:     1,
			QuotesPerSecond:     5,
			PositionsPerSecond:  2,
			MarketDataPerSecond: 10,
			AcquireTimeoutSecs:  5,
		},
		Store: StoreConfig{
			RedisAddr:   "localhost:6379",
			JournalPath: filepath.Join(DefaultConfigDir(), "engine.db"),
		},
		MarketData: MarketDataConfig{
			BaseURL:         "https://api.kite.trade",
			CacheTTLMinutes: 5,
			TimeoutSeconds:  10,
		},
		Predictions: PredictionsConfig{
			KeyPrefix:     "ml:prediction:",
			MaxAgeMinutes: 10,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    true,
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := writeTemplate(configDir); err != nil {
				return nil, fmt.Errorf("creating config template: %w", err)
			}
		} else {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("SIGNAL_ENGINE_REDIS_ADDR"); addr != "" {
		cfg.Store.RedisAddr = addr
	}
	if pw := os.Getenv("SIGNAL_ENGINE_REDIS_PASSWORD"); pw != "" {
		cfg.Store.RedisPassword = pw
	}
	if level := os.Getenv("SIGNAL_ENGINE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if capital := os.Getenv("SIGNAL_ENGINE_TOTAL_CAPITAL"); capital != "" {
		if f, err := strconv.ParseFloat(capital, 64); err == nil && f > 0 {
			cfg.Capital.TotalCapital = f
		}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Capital.TotalCapital <= 0 {
		return fmt.Errorf("capital.total_capital must be positive, got %.2f", c.Capital.TotalCapital)
	}
	if c.Capital.MaxSinglePositionPercent <= 0 || c.Capital.MaxSinglePositionPercent > 100 {
		return fmt.Errorf("capital.max_single_position_percent must be in (0,100], got %.2f", c.Capital.MaxSinglePositionPercent)
	}
	if c.Capital.MaxSectorExposurePercent <= 0 || c.Capital.MaxSectorExposurePercent > 100 {
		return fmt.Errorf("capital.max_sector_exposure_percent must be in (0,100], got %.2f", c.Capital.MaxSectorExposurePercent)
	}
	if c.Capital.MaxSimultaneousTrades < 1 {
		return fmt.Errorf("capital.max_simultaneous_trades must be at least 1, got %d", c.Capital.MaxSimultaneousTrades)
	}
	if c.Capital.CapitalSplitPercent <= 0 || c.Capital.CapitalSplitPercent > 100 {
		return fmt.Errorf("capital.capital_split_percent must be in (0,100], got %.2f", c.Capital.CapitalSplitPercent)
	}
	if c.Selection.WindowSeconds <= 0 {
		return fmt.Errorf("selection.window_seconds must be positive, got %d", c.Selection.WindowSeconds)
	}
	if c.Selection.SignalTTLMinutes <= 0 {
		return fmt.Errorf("selection.signal_ttl_minutes must be positive, got %d", c.Selection.SignalTTLMinutes)
	}
	if c.RateLimits.OrdersPerSecond <= 0 {
		return fmt.Errorf("rate_limits.orders_per_second must be positive, got %.2f", c.RateLimits.OrdersPerSecond)
	}
	if c.RateLimits.AcquireTimeoutSecs <= 0 {
		return fmt.Errorf("rate_limits.acquire_timeout_seconds must be positive, got %d", c.RateLimits.AcquireTimeoutSecs)
	}
	return nil
}

const configTemplate = `# signal-engine configuration

[capital]
total_capital = 1000000.0
max_single_position_percent = 10.0
max_sector_exposure_percent = 30.0
max_simultaneous_trades = 3
capital_split_percent = 45.0

[selection]
window_seconds = 120
min_score = 2.0
signal_ttl_minutes = 15

[rate_limits]
orders_per_second = 1.0
quotes_per_second = 5.0
positions_per_second = 2.0
market_data_per_second = 10.0
acquire_timeout_seconds = 5

[store]
redis_addr = "localhost:6379"
redis_password = ""
redis_db = 0
journal_path = ""

[market_data]
base_url = "https://api.kite.trade"
cache_ttl_minutes = 5
timeout_seconds = 10

[predictions]
key_prefix = "ml:prediction:"
max_age_minutes = 10

[logging]
level = "info"
console = true
file = true
`

// writeTemplate writes a template config file for first-time setup.
func writeTemplate(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(configTemplate), 0644)
}
