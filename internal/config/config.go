package config

import (
	"time"
)

// Config represents the complete gateway configuration.
// Values come from three layers: built-in defaults, the YAML config file,
// and TENDERGATE_* environment variables (viper resolves precedence).
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Store     StoreConfig     `mapstructure:"store"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GatewayConfig contains the reverse-proxy configuration for the
// upstream TenderDesk backend.
type GatewayConfig struct {
	// UpstreamURL is the base URL requests are proxied to once they
	// clear the governance middleware.
	UpstreamURL string `mapstructure:"upstream_url"`

	// TrustForwardedFor controls whether X-Forwarded-For / X-Real-IP
	// are honored for client identity. Only enable behind a proxy
	// you control.
	TrustForwardedFor bool `mapstructure:"trust_forwarded_for"`

	// GlobalRPS is an optional whole-gateway throttle in requests per
	// second. Zero disables it.
	GlobalRPS float64 `mapstructure:"global_rps"`

	// GlobalBurst is the burst size for the global throttle.
	GlobalBurst int `mapstructure:"global_burst"`
}

// RateLimitConfig contains per-client rate limiting and penalty
// escalation configuration.
type RateLimitConfig struct {
	// Enabled controls whether per-client limits are enforced.
	// When false the gateway proxies everything through untouched.
	Enabled bool `mapstructure:"enabled"`

	// JanitorInterval is how often expired window entries are evicted.
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`

	// PenaltyBase is the first penalty duration. Each further
	// violation doubles it (or multiplies by PenaltyMultiplier).
	PenaltyBase       time.Duration `mapstructure:"penalty_base"`
	PenaltyMultiplier int           `mapstructure:"penalty_multiplier"`
	PenaltyCap        time.Duration `mapstructure:"penalty_cap"`

	// Presets overrides the built-in per-category limits.
	// Keys: auth, mutation, upload, sensitive, default.
	Presets map[string]PresetConfig `mapstructure:"presets"`
}

// PresetConfig overrides one endpoint category's window and quota.
type PresetConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// AuditConfig selects where violation and security-event records go.
type AuditConfig struct {
	// Backend is "store" (libsql) or "memory" (ring buffer, lost on
	// restart; useful for tests and ephemeral deployments).
	Backend string `mapstructure:"backend"`

	// MemoryLimit caps the in-memory ring when backend is "memory".
	MemoryLimit int `mapstructure:"memory_limit"`

	// ReportTimeout bounds each async audit write.
	ReportTimeout time.Duration `mapstructure:"report_timeout"`
}

// AdminConfig secures the /admin endpoints.
type AdminConfig struct {
	// Token is the bearer token required on admin requests.
	// An empty token disables the admin surface entirely.
	Token string `mapstructure:"token"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
// - ENTERPRISE: Multiple sinks, middleware, throttling, policy enforcement (production)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	// Metrics are also available at the main HTTP port in JSON format
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
