// Command cardserver is the card-combat game server's entry point: a
// small cobra CLI wrapping config init, version, and the start command
// that actually runs the TLS accept loop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/marmos91/cardserver/internal/acceptor"
	"github.com/marmos91/cardserver/internal/logger"
	"github.com/marmos91/cardserver/internal/transport"
	"github.com/marmos91/cardserver/pkg/config"
	"github.com/marmos91/cardserver/pkg/metrics"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "cardserver",
		Short:         "Card-combat match server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: $XDG_CONFIG_HOME/cardserver/config.yaml)")

	root.AddCommand(newInitCmd(&configPath))
	root.AddCommand(newStartCmd(&configPath))
	root.AddCommand(newVersionCmd())

	return root
}

func newInitCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configPath
			if path == "" {
				path = config.GetDefaultConfigPath()
			}
			if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote default configuration to %s\n", path)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func newStartCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the match server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(*configPath)
		},
	}
}

func runStart(configPath string) error {
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	var metricsServer *http.Server
	var sampleInterval time.Duration
	if cfg.Metrics.Enabled {
		sampleInterval = 5 * time.Second
		reg := metrics.Enable()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", logger.KeyError, err.Error())
			}
		}()
		logger.Info("metrics server listening", "addr", metricsServer.Addr)
	}

	acc, err := acceptor.Open(acceptor.Config{
		Addr: cfg.Listen.Addr,
		TLS: transport.Config{
			CertFile: cfg.Listen.CertFile,
			KeyFile:  cfg.Listen.KeyFile,
		},
		CountersPath:          cfg.SessionStore.CountersPath,
		SessionStorePath:      cfg.SessionStore.Path,
		ReadTimeout:           cfg.Listen.ReadTimeout,
		MetricsSampleInterval: sampleInterval,
	})
	if err != nil {
		return fmt.Errorf("open acceptor: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("cardserver listening", "addr", cfg.Listen.Addr)

	serveErr := make(chan error, 1)
	go func() { serveErr <- acc.Serve(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining connections")
	case err := <-serveErr:
		if err != nil {
			logger.Error("accept loop exited", logger.KeyError, err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}

	if err := acc.Close(); err != nil {
		return fmt.Errorf("close acceptor: %w", err)
	}
	return nil
}
