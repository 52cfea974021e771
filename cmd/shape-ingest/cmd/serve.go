package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shapestone/shape-ingest/internal/config"
	"github.com/shapestone/shape-ingest/internal/logging"
	"github.com/shapestone/shape-ingest/internal/server"
	"github.com/shapestone/shape-ingest/internal/telemetry"
	"github.com/shapestone/shape-ingest/pkg/ingest"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the echo server",
	Long: `Start an HTTP/1.1 server that answers every request with an echo of
what was received. Requests with ambiguous framing are answered with an
error status and the connection is closed.

Examples:
  # Serve with config file settings
  shape-ingest serve

  # Override the listen address and expose metrics
  shape-ingest serve --addr :8080 --metrics-addr 127.0.0.1:9090

  # Print a span per request
  shape-ingest serve --trace-stdout`,
	RunE:         runServe,
	SilenceUsage: true,
}

var (
	serveAddr        string
	serveMetricsAddr string
	serveDev         bool
	serveTraceStdout bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Prometheus metrics address (overrides server.metrics_addr)")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "Enable development mode (debug console logging)")
	serveCmd.Flags().BoolVar(&serveTraceStdout, "trace-stdout", false, "export request spans as JSON to stderr")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveMetricsAddr != "" {
		cfg.Server.MetricsAddr = serveMetricsAddr
	}
	level := cfg.Server.LogLevel
	if serveDev {
		cfg.Server.Development = true
		level = "debug"
	}

	logger, err := logging.New(level, cfg.Server.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if f := config.ConfigFileUsed(); f != "" {
		logger.Info("loaded config", zap.String("file", f))
	}

	if serveTraceStdout {
		shutdownTracing, err := telemetry.SetupStdout(os.Stderr, "shape-ingest")
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				logger.Warn("flushing spans failed", zap.Error(err))
			}
		}()
	}

	read, idle, write, err := cfg.Server.Timeouts()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	parserCfg := cfg.Limits.ParserConfig()
	parserCfg.Logger = logger
	parserCfg.Metrics = ingest.NewMetrics(reg)

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  read,
		IdleTimeout:  idle,
		WriteTimeout: write,
		Parser:       parserCfg,
		Logger:       logger,
	}, server.EchoHandler())

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsSrv = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.Server.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(context.WithoutCancel(ctx)) }()

	select {
	case err := <-errCh:
		stop()
		shutdownMetrics(metricsSrv)
		if errors.Is(err, server.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		stop()
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("connections closed before draining", zap.Error(err))
	}
	shutdownMetrics(metricsSrv)
	if err := <-errCh; !errors.Is(err, server.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func shutdownMetrics(s *http.Server) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = s.Shutdown(ctx)
}
