// Package config provides centralized configuration management for TenderGate.
// Defaults live in code, overrides come from an XDG-discovered YAML file, and
// TENDERGATE_* environment variables win over both. Viper owns the merge;
// this package owns the typed decode and validation.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppName is the fixed application identity used for XDG path discovery,
// env prefixing, and telemetry namespacing.
const AppName = "tendergate"

// EnvPrefix is the prefix for environment variable overrides
// (e.g. TENDERGATE_SERVER_PORT).
const EnvPrefix = "TENDERGATE"

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// Load decodes the merged viper settings into a typed Config and validates
// it. Callers must have initialized viper (config file, env, defaults)
// beforehand; the cmd package does this in initConfig.
//
// This function is safe to call multiple times (e.g., for config reload).
func Load() (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate checks cross-field constraints that viper defaults cannot express.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	if upstream := strings.TrimSpace(c.Gateway.UpstreamURL); upstream != "" {
		parsed, err := url.Parse(upstream)
		if err != nil {
			return fmt.Errorf("invalid gateway upstream URL: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("gateway upstream URL must be http or https, got %q", parsed.Scheme)
		}
		if parsed.Host == "" {
			return fmt.Errorf("gateway upstream URL %q has no host", upstream)
		}
	}

	if c.Gateway.GlobalRPS < 0 {
		return fmt.Errorf("gateway global_rps must not be negative, got %v", c.Gateway.GlobalRPS)
	}

	if c.RateLimit.PenaltyMultiplier < 2 {
		return fmt.Errorf("ratelimit penalty_multiplier must be at least 2, got %d", c.RateLimit.PenaltyMultiplier)
	}
	if c.RateLimit.PenaltyBase <= 0 {
		return fmt.Errorf("ratelimit penalty_base must be positive, got %v", c.RateLimit.PenaltyBase)
	}
	if c.RateLimit.PenaltyCap < c.RateLimit.PenaltyBase {
		return fmt.Errorf("ratelimit penalty_cap %v is below penalty_base %v", c.RateLimit.PenaltyCap, c.RateLimit.PenaltyBase)
	}
	if c.RateLimit.JanitorInterval <= 0 {
		return fmt.Errorf("ratelimit janitor_interval must be positive, got %v", c.RateLimit.JanitorInterval)
	}

	for name, preset := range c.RateLimit.Presets {
		if preset.Window <= 0 {
			return fmt.Errorf("ratelimit preset %q window must be positive, got %v", name, preset.Window)
		}
		if preset.MaxRequests <= 0 {
			return fmt.Errorf("ratelimit preset %q max_requests must be positive, got %d", name, preset.MaxRequests)
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Audit.Backend)) {
	case "store", "memory":
	default:
		return fmt.Errorf("audit backend must be \"store\" or \"memory\", got %q", c.Audit.Backend)
	}
	if c.Audit.ReportTimeout <= 0 {
		return fmt.Errorf("audit report_timeout must be positive, got %v", c.Audit.ReportTimeout)
	}

	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(AppName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
