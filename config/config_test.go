package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
market:
  ticker_prefix: INXD
  api_base: https://example.test/v2
strategy:
  position_limit: 30
  quote_size: 5
  gamma: 0.00001
reference:
  symbol: $SPX.X
  interval_seconds: 15
storage:
  dsn: ":memory:"
log:
  level: warn
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "INXD", cfg.Market.TickerPrefix)
	assert.Equal(t, "https://example.test/v2", cfg.Market.APIBase)
	assert.Equal(t, 30, cfg.Strategy.PositionLimit)
	assert.Equal(t, 5, cfg.Strategy.QuoteSize)
	assert.Equal(t, 15*time.Second, cfg.PollInterval())
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Strategy.PositionLimit)
	assert.Equal(t, 10, cfg.Strategy.QuoteSize)
	assert.Equal(t, 16, cfg.Strategy.EODHour)
	assert.Equal(t, 0.000005, cfg.Strategy.Gamma)
	assert.Equal(t, "$SPX.X", cfg.Reference.Symbol)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_CredentialsFromEnvOnly(t *testing.T) {
	t.Setenv("KALSHI_EMAIL", "bot@example.test")
	t.Setenv("KALSHI_PASSWORD", "hunter2")
	t.Setenv("TD_REFRESH_TOKEN", "refresh-tok")
	t.Setenv("TD_CONSUMER_KEY", "consumer-key")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "bot@example.test", cfg.Market.Email)
	assert.Equal(t, "hunter2", cfg.Market.Password)
	assert.Equal(t, "refresh-tok", cfg.Reference.RefreshToken)
	assert.Equal(t, "consumer-key", cfg.Reference.ConsumerKey)
	assert.Equal(t, "debug", cfg.Log.Level, "env overrides the file")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestExpiry(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	day := time.Date(2021, 9, 17, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2021, 9, 17, 16, 0, 0, 0, time.UTC), cfg.Expiry(day, time.UTC))
}
