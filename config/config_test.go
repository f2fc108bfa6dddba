package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	path := writeConfig(t, `
risk:
  spend_cap: "25"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.CycleInterval())
	assert.Equal(t, 5*time.Minute, cfg.SpendWindow())
	assert.True(t, cfg.SpendCap().Equal(decimal.New(25, 0)))
	assert.Equal(t, "demo", cfg.Risk.Environment)
	assert.False(t, cfg.IsLive())
	assert.Equal(t, []string{"https://demo-api.kalshi.co"}, cfg.Risk.AllowedOrigins)
	assert.Equal(t, 8.0, cfg.Venue.RateLimitPerSec)
	assert.Equal(t, 92.0, cfg.Signal.ReverseConfidence)
	assert.Equal(t, ":2112", cfg.Metrics.Addr)
}

func TestLoad_LiveRequiresExplicitOptIn(t *testing.T) {
	path := writeConfig(t, `
risk:
  environment: live
  allowed_execution_origins:
    - https://api.elections.kalshi.com
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsLive())
}

func TestLoad_RejectsUnknownEnvironment(t *testing.T) {
	path := writeConfig(t, `
risk:
  environment: production
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "environment")
}

func TestLoad_RejectsBadSpendCap(t *testing.T) {
	path := writeConfig(t, `
risk:
  spend_cap: "ten dollars"
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "spend_cap")
}

func TestLoad_RejectsOriginWithoutScheme(t *testing.T) {
	path := writeConfig(t, `
risk:
  allowed_execution_origins:
    - demo-api.kalshi.co
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "allowed origin")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("TRADER_ENVIRONMENT", "live")
	t.Setenv("LOG_LEVEL", "debug")

	path := writeConfig(t, `
risk:
  environment: demo
log:
  level: info
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsLive())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
