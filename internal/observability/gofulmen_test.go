package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/tendergate/tendergate/internal/observability"
)

func TestLoggerInitialization(t *testing.T) {
	t.Run("CLI logger creation", func(t *testing.T) {
		observability.InitCLILogger("tendergate-test", false)

		if observability.CLILogger == nil {
			t.Fatal("CLI logger should not be nil after initialization")
		}

		observability.CLILogger.Info("cli logger online",
			zap.String("test", "value"))
	})

	t.Run("Structured server logger creation", func(t *testing.T) {
		observability.InitServerLogger("tendergate-test", "info")

		if observability.ServerLogger == nil {
			t.Fatal("Server logger should not be nil after initialization")
		}

		observability.ServerLogger.Info("server logger online",
			zap.String("component", "test"),
			zap.Int("port", 8080))
	})

	t.Run("Verbose CLI logger", func(t *testing.T) {
		logger, err := logging.NewCLI("tendergate-verbose-test")
		if err != nil {
			t.Fatalf("Failed to create verbose logger: %v", err)
		}

		logger.SetLevel(logging.DEBUG)
		logger.Debug("debug output enabled",
			zap.String("mode", "verbose"))
	})
}

func TestEmbeddedCrucible(t *testing.T) {
	t.Run("Crucible version access", func(t *testing.T) {
		version := crucible.GetVersion()

		if version.Gofulmen == "" {
			t.Error("Gofulmen version should not be empty")
		}

		if version.Crucible == "" {
			t.Error("Crucible version should not be empty")
		}
	})

	t.Run("Crucible version string", func(t *testing.T) {
		versionStr := crucible.GetVersionString()

		if versionStr == "" {
			t.Error("Version string should not be empty")
		}
	})
}
