package cmd

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tendergate/tendergate/internal/config"
	errwrap "github.com/tendergate/tendergate/internal/errors"
	"github.com/tendergate/tendergate/internal/observability"
	"github.com/tendergate/tendergate/internal/ratelimit"
	"github.com/tendergate/tendergate/internal/server"
	"github.com/tendergate/tendergate/internal/server/handlers"
	"github.com/tendergate/tendergate/internal/store"
)

var (
	serverPort int
	serverHost string
)

// signalHealthChecker implements HealthChecker for signal system
type signalHealthChecker struct{}

func (s signalHealthChecker) CheckHealth(ctx context.Context) error {
	return nil // Signal handlers are registered and ready
}

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// storeHealthChecker pings the audit database
type storeHealthChecker struct {
	db *store.Store
}

func (s storeHealthChecker) CheckHealth(ctx context.Context) error {
	if s.db == nil || s.db.DB == nil {
		return errwrap.NewDatabaseError("audit store not initialized")
	}
	if err := s.db.DB.PingContext(ctx); err != nil {
		return errwrap.WrapDatabaseError(ctx, err, "audit store ping failed")
	}
	return nil
}

// limiterHealthChecker verifies the rate limit engine is wired
type limiterHealthChecker struct {
	engine *ratelimit.Engine
}

func (l limiterHealthChecker) CheckHealth(ctx context.Context) error {
	if l.engine == nil || l.engine.Store == nil {
		return errwrap.NewInternalError("rate limit engine not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the abuse-governance gateway with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (placeholder - restart recommended)

On shutdown the gateway stops accepting requests, drains in-flight audit
writes, closes the violation store, and flushes logs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration is invalid")
		}

		// Initialize server logger with namespace
		observability.InitServerLogger(config.AppName, cfg.Logging.Level, config.AppName)

		metricsPort := cfg.Metrics.Port
		if metricsPort == 0 {
			metricsPort = 9090
		}

		// Initialize metrics with namespace
		if err := observability.InitMetrics(config.AppName, metricsPort, config.AppName); err != nil {
			observability.ServerLogger.Error("Failed to initialize metrics",
				zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}

		observability.ServerLogger.Info("Initializing gateway",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Int("metrics_port", metricsPort),
			zap.String("upstream", cfg.Gateway.UpstreamURL),
			zap.Bool("ratelimit_enabled", cfg.RateLimit.Enabled))

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("signal_handlers", signalHealthChecker{})
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})

		var upstream *url.URL
		if raw := strings.TrimSpace(cfg.Gateway.UpstreamURL); raw != "" {
			upstream, err = url.Parse(raw)
			if err != nil {
				return errwrap.WrapConfigInvalid(cmd.Context(), err, "invalid upstream URL")
			}
		}

		// Build the governance engine and its audit backend
		var (
			engine  *ratelimit.Engine
			db      *store.Store
			janitor *ratelimit.Janitor
		)
		if cfg.RateLimit.Enabled {
			reporter, auditDB, err := buildReporter(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			db = auditDB

			limiterStore := ratelimit.NewStore(
				ratelimit.WithPenaltySchedule(cfg.RateLimit.PenaltyBase, cfg.RateLimit.PenaltyMultiplier, cfg.RateLimit.PenaltyCap),
			)

			engine = &ratelimit.Engine{
				Store:             limiterStore,
				Policy:            ratelimit.NewPolicy(presetOverrides(cfg.RateLimit.Presets)),
				Reporter:          reporter,
				Logger:            observability.ServerLogger,
				TrustProxyHeaders: cfg.Gateway.TrustForwardedFor,
				ReportTimeout:     cfg.Audit.ReportTimeout,
			}

			janitor = &ratelimit.Janitor{
				Store:    limiterStore,
				Interval: cfg.RateLimit.JanitorInterval,
				Logger:   observability.ServerLogger,
			}

			hm.RegisterChecker("rate_limiter", limiterHealthChecker{engine: engine})
			if db != nil {
				hm.RegisterChecker("audit_store", storeHealthChecker{db: db})
			}
		}

		// Create server
		srv := server.New(server.Options{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			Upstream:     upstream,
			Engine:       engine,
			GlobalRPS:    cfg.Gateway.GlobalRPS,
			GlobalBurst:  cfg.Gateway.GlobalBurst,
			AdminToken:   cfg.Admin.Token,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		})

		handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)

		// Get shutdown timeout from config
		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Janitor runs until shutdown cancels its context
		janitorCtx, stopJanitor := context.WithCancel(context.Background())
		defer stopJanitor()
		if janitor != nil {
			go janitor.Run(janitorCtx)
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		// Handler 2: Drain audit writes and close the store
		signals.OnShutdown(func(ctx context.Context) error {
			stopJanitor()
			if engine != nil {
				observability.ServerLogger.Info("Draining audit writes...")
				engine.Drain()
			}
			if db != nil {
				if err := db.Close(); err != nil {
					observability.ServerLogger.Warn("Failed to close audit store",
						zap.Error(err))
				}
			}
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					observability.ServerLogger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				observability.ServerLogger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			observability.ServerLogger.Info("Configuration reloaded successfully",
				zap.String("file", viper.ConfigFileUsed()))

			// TODO: Rebuild the policy table from reloaded presets without a restart
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

// buildReporter selects the audit backend. The libsql store is the default;
// the memory ring is for tests and ephemeral deployments.
func buildReporter(ctx context.Context, cfg *config.Config) (ratelimit.Reporter, *store.Store, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Audit.Backend), "memory") {
		observability.ServerLogger.Warn("Using in-memory audit backend, violations are lost on restart")
		return ratelimit.NewMemoryReporter(cfg.Audit.MemoryLimit), nil, nil
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, errwrap.WrapDatabaseError(ctx, err, "failed to open audit store")
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, errwrap.WrapDatabaseError(ctx, err, "failed to migrate audit store")
	}
	return db, db, nil
}

// presetOverrides converts config preset overrides to policy configs. The
// built-in preset supplies the label and message; only the window and quota
// are overridable.
func presetOverrides(presets map[string]config.PresetConfig) map[string]ratelimit.Config {
	if len(presets) == 0 {
		return nil
	}

	overrides := make(map[string]ratelimit.Config, len(presets))
	for name, preset := range presets {
		base, ok := ratelimit.DefaultPresets[name]
		if !ok {
			observability.ServerLogger.Warn("Ignoring unknown rate limit preset",
				zap.String("preset", name))
			continue
		}
		base.Window = preset.Window
		base.MaxRequests = preset.MaxRequests
		overrides[name] = base
	}
	return overrides
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
