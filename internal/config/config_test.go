package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1000000.0, cfg.Capital.TotalCapital)
	assert.Equal(t, 2*time.Minute, cfg.Selection.Window())
	assert.Equal(t, 15*time.Minute, cfg.Selection.SignalTTL())
	assert.Equal(t, 5*time.Second, cfg.RateLimits.AcquireTimeout())
	assert.Equal(t, 5*time.Minute, cfg.MarketData.CacheTTL())
	assert.Equal(t, 10*time.Minute, cfg.Predictions.MaxAge())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capital", func(c *Config) { c.Capital.TotalCapital = 0 }},
		{"single position over 100", func(c *Config) { c.Capital.MaxSinglePositionPercent = 150 }},
		{"zero sector cap", func(c *Config) { c.Capital.MaxSectorExposurePercent = 0 }},
		{"zero max trades", func(c *Config) { c.Capital.MaxSimultaneousTrades = 0 }},
		{"negative split", func(c *Config) { c.Capital.CapitalSplitPercent = -5 }},
		{"zero window", func(c *Config) { c.Selection.WindowSeconds = 0 }},
		{"zero signal ttl", func(c *Config) { c.Selection.SignalTTLMinutes = 0 }},
		{"zero order rate", func(c *Config) { c.RateLimits.OrdersPerSecond = 0 }},
		{"zero acquire timeout", func(c *Config) { c.RateLimits.AcquireTimeoutSecs = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadWritesTemplateOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default().Capital.TotalCapital, cfg.Capital.TotalCapital)

	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	assert.NoError(t, err, "first run must write a config template")
}

func TestLoadReadsTOMLOverrides(t *testing.T) {
	dir := t.TempDir()
	toml := `
[capital]
total_capital = 500000.0
max_single_position_percent = 5.0
max_sector_exposure_percent = 20.0
max_simultaneous_trades = 2
capital_split_percent = 40.0

[selection]
window_seconds = 60
min_score = 25.0
signal_ttl_minutes = 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 500000.0, cfg.Capital.TotalCapital)
	assert.Equal(t, 2, cfg.Capital.MaxSimultaneousTrades)
	assert.Equal(t, time.Minute, cfg.Selection.Window())
	assert.Equal(t, 25.0, cfg.Selection.MinScore)
	// Sections absent from the file keep their defaults.
	assert.Equal(t, Default().RateLimits.OrdersPerSecond, cfg.RateLimits.OrdersPerSecond)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SIGNAL_ENGINE_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SIGNAL_ENGINE_TOTAL_CAPITAL", "2500000")
	t.Setenv("SIGNAL_ENGINE_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Store.RedisAddr)
	assert.Equal(t, 2500000.0, cfg.Capital.TotalCapital)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	toml := `
[capital]
total_capital = -1.0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}
