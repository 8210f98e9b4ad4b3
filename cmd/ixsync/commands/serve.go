package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/peerix/ixsync/internal/logger"
	"github.com/peerix/ixsync/internal/telemetry"
	"github.com/peerix/ixsync/pkg/api"
	"github.com/peerix/ixsync/pkg/config"
	"github.com/peerix/ixsync/pkg/importer"
)

var serveEvery time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ixsync API server",
	Long: `Start the HTTP API server: health probes, Prometheus metrics,
on-demand reconciliation runs and post-mortem reports.

With --every set, the server also sweeps all IXLANs on that interval.

Examples:
  # Serve the API only
  ixsync serve

  # Serve and reconcile everything hourly
  ixsync serve --every 1h`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&serveEvery, "every", 0, "Interval between full reconciliation sweeps (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceVersion = Version
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	deps, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Store.Close() }()

	apiServer := api.NewServer(cfg.API, api.Deps{
		Store:      deps.Store,
		Importer:   deps.Importer,
		PostMortem: deps.PostMortem,
		Metrics:    deps.Metrics,
	})
	logger.Info("API server configured", "port", apiServer.Port())

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	if serveEvery > 0 {
		logger.Info("Periodic reconciliation enabled", "interval", serveEvery.String())
		go runSweeps(ctx, deps.Importer, serveEvery)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// runSweeps reconciles every IXLAN on a fixed interval until the
// context is cancelled. A failed sweep is logged and the next tick
// tries again.
func runSweeps(ctx context.Context, imp *importer.Importer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := imp.RunAll(ctx, importer.RunOptions{Save: true}); err != nil {
				logger.Error("reconciliation sweep failed", "error", err)
			}
		}
	}
}
