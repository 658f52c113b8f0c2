package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ModeSimulation, cfg.Mode)
	assert.Equal(t, 30, cfg.CycleCooldownMinutes)
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Enabled("claude"))
	assert.False(t, cfg.Enabled("unknown"))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ModeSimulation, cfg.Mode)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: selective
cycle_cooldown_minutes: 5
budgets:
  per_call_usd: 0.25
  per_task_usd: 2
  per_cycle_usd: 8
  daily_usd: 20
  weekly_usd: 80
  per_provider_daily_usd:
    openai: 4
providers:
  openai:
    enabled: true
    model: gpt-4o
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeSelective, cfg.Mode)
	assert.Equal(t, 5, cfg.CycleCooldownMinutes)
	assert.InDelta(t, 0.25, cfg.Budgets.PerCallUsd, 1e-9)
	assert.InDelta(t, 4.0, cfg.Budgets.PerProviderDailyUsd["openai"], 1e-9)
	assert.True(t, cfg.Enabled("openai"))
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: turbo\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
}

func TestLoadRejectsNegativeCaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
budgets:
  daily_usd: -1
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily_usd")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTOLOOP_MODE", "live")
	t.Setenv("AUTOLOOP_CYCLE_COOLDOWN_MINUTES", "1")
	t.Setenv("AUTOLOOP_DAILY_USD", "7.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeLive, cfg.Mode)
	assert.Equal(t, 1, cfg.CycleCooldownMinutes)
	assert.InDelta(t, 7.5, cfg.Budgets.DailyUsd, 1e-9)
}

func TestValidModes(t *testing.T) {
	assert.True(t, ValidMode(ModeSimulation))
	assert.True(t, ValidMode(ModeSelective))
	assert.True(t, ValidMode(ModeLive))
	assert.False(t, ValidMode("turbo"))
	assert.False(t, ValidMode(""))
}
