// Package config defines autoloop's configuration and its loader.
// Configuration comes from built-in defaults, an optional YAML file and
// AUTOLOOP_* environment overrides, later sources winning.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"autoloop/internal/domain"
)

// Engine modes.
const (
	ModeSimulation = "simulation"
	ModeSelective  = "selective"
	ModeLive       = "live"
)

// ValidMode reports whether m is a known engine mode.
func ValidMode(m string) bool {
	switch m {
	case ModeSimulation, ModeSelective, ModeLive:
		return true
	}
	return false
}

// Provider configures one backend provider.
type Provider struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKeyEnv string `json:"apiKeyEnv,omitempty" yaml:"api_key_env,omitempty"`
}

// API configures the control surface listener.
type API struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Storage configures the durable store.
type Storage struct {
	Path string `json:"path" yaml:"path"`
}

// Config is the full engine configuration.
type Config struct {
	Mode                 string              `json:"mode" yaml:"mode"`
	CycleCooldownMinutes int                 `json:"cycleCooldownMinutes" yaml:"cycle_cooldown_minutes"`
	WorkingDir           string              `json:"workingDir" yaml:"working_dir"`
	Budgets              domain.BudgetConfig `json:"budgets" yaml:"budgets"`
	Providers            map[string]Provider `json:"providers" yaml:"providers"`
	API                  API                 `json:"api" yaml:"api"`
	Storage              Storage             `json:"storage" yaml:"storage"`
}

// Default returns the built-in defaults: simulation mode, conservative
// budgets, all providers disabled.
func Default() *Config {
	return &Config{
		Mode:                 ModeSimulation,
		CycleCooldownMinutes: 30,
		WorkingDir:           ".",
		Budgets:              domain.DefaultBudgets(),
		Providers: map[string]Provider{
			"claude": {Enabled: false, Model: "claude-sonnet-4-5", APIKeyEnv: "ANTHROPIC_API_KEY"},
			"openai": {Enabled: false, Model: "gpt-4o", APIKeyEnv: "OPENAI_API_KEY"},
			"gemini": {Enabled: false, Model: "gemini-2.0-flash", APIKeyEnv: "GEMINI_API_KEY"},
		},
		API:     API{Addr: "127.0.0.1:7171"},
		Storage: Storage{Path: ".autoloop/autoloop.db"},
	}
}

// Clone returns a deep copy of the configuration. The provider and
// per-provider cap maps are copied, so writes to the clone never reach
// the original.
func (c *Config) Clone() *Config {
	out := *c
	if c.Providers != nil {
		out.Providers = make(map[string]Provider, len(c.Providers))
		for name, p := range c.Providers {
			out.Providers[name] = p
		}
	}
	if c.Budgets.PerProviderDailyUsd != nil {
		out.Budgets.PerProviderDailyUsd = make(map[string]float64, len(c.Budgets.PerProviderDailyUsd))
		for provider, capUsd := range c.Budgets.PerProviderDailyUsd {
			out.Budgets.PerProviderDailyUsd[provider] = capUsd
		}
	}
	return &out
}

// Load reads configuration from path (optional; a missing file falls back
// to defaults), applies environment overrides, then validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies AUTOLOOP_* overrides.
func applyEnv(cfg *Config) {
	if v := os.Getenv("AUTOLOOP_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("AUTOLOOP_API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("AUTOLOOP_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("AUTOLOOP_CYCLE_COOLDOWN_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.CycleCooldownMinutes = n
		}
	}
	if v := os.Getenv("AUTOLOOP_DAILY_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Budgets.DailyUsd = f
		}
	}
}

// Validate checks invariants: known mode, non-negative cooldown and caps.
func (c *Config) Validate() error {
	if !ValidMode(c.Mode) {
		return fmt.Errorf("invalid mode %q (want simulation, selective or live)", c.Mode)
	}
	if c.CycleCooldownMinutes < 0 {
		return fmt.Errorf("cycle_cooldown_minutes must be >= 0")
	}
	b := c.Budgets
	for name, capUsd := range map[string]float64{
		"per_call_usd":  b.PerCallUsd,
		"per_task_usd":  b.PerTaskUsd,
		"per_cycle_usd": b.PerCycleUsd,
		"daily_usd":     b.DailyUsd,
		"weekly_usd":    b.WeeklyUsd,
	} {
		if capUsd < 0 {
			return fmt.Errorf("budget cap %s must be >= 0", name)
		}
	}
	for provider, capUsd := range b.PerProviderDailyUsd {
		if capUsd < 0 {
			return fmt.Errorf("budget cap per_provider_daily_usd[%s] must be >= 0", provider)
		}
	}
	return nil
}

// Enabled reports whether the named provider is enabled in config.
func (c *Config) Enabled(provider string) bool {
	p, ok := c.Providers[provider]
	return ok && p.Enabled
}
