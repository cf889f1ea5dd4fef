// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/leseb/fileregistry/pkg/adapters/http"
	"github.com/leseb/fileregistry/pkg/core/config"
	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/events"
	"github.com/leseb/fileregistry/pkg/observability/logging"
	"github.com/leseb/fileregistry/pkg/observability/tracing"

	// Backends register themselves with registry.Providers and events.Journals.
	_ "github.com/leseb/fileregistry/pkg/events/filesystem"
	_ "github.com/leseb/fileregistry/pkg/events/s3"
	_ "github.com/leseb/fileregistry/pkg/storage/memory"
	_ "github.com/leseb/fileregistry/pkg/storage/postgres"
	_ "github.com/leseb/fileregistry/pkg/storage/sqlite"
)

var (
	// Version is set via ldflags during build
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	port := flag.Int("port", 0, "HTTP port to listen on (overrides config)")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("File Registry Server\nVersion: %s\nBuild Time: %s\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, cfgErr := config.Load(*configPath)
	if cfgErr != nil {
		cfg = config.Default()
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Info("Starting File Registry Server",
		"version", Version,
		"build_time", BuildTime)
	if cfgErr != nil {
		logger.Warn("Failed to load config, using defaults", "error", cfgErr)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *logging.Logger) error {
	initCtx := context.Background()

	// Initialize tracing (no-op unless enabled)
	tp, err := tracing.NewProvider(initCtx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())
	if tp.Enabled() {
		logger.Info("Initialized tracing", "exporter", cfg.Tracing.Exporter)
	}

	// Initialize registry storage
	store, err := registry.Providers.New(initCtx, cfg.Storage.Type, cfg.Storage.Params())
	if err != nil {
		return fmt.Errorf("initialize %s storage: %w", cfg.Storage.Type, err)
	}
	defer store.Close(context.Background())
	logger.Info("Initialized registry storage", "type", cfg.Storage.Type)

	// Initialize event journal and live feed
	journal, err := events.Journals.New(initCtx, cfg.Events.Journal, cfg.Events.Params())
	if err != nil {
		return fmt.Errorf("initialize %s journal: %w", cfg.Events.Journal, err)
	}
	defer journal.Close(context.Background())
	logger.Info("Initialized event journal", "type", cfg.Events.Journal)

	broker := events.NewBrokerWithBuffer[registry.Event](cfg.Events.BufferSize)
	defer broker.Close()
	dispatcher := events.NewDispatcher(journal, broker, logger.With("component", "events"))

	reg := registry.New(store,
		registry.WithNotifier(dispatcher),
		registry.WithLogger(logger.With("component", "registry")),
		registry.WithTracer(tp.Tracer()))

	count, err := reg.Count(initCtx)
	if err != nil {
		return fmt.Errorf("read registry state: %w", err)
	}
	logger.Info("Initialized registry", "files", count)

	handler := httpAdapter.New(reg, dispatcher, logger, httpAdapter.WithTracer(tp.Tracer()))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received")

	// Close live subscriptions so event streams let shutdown finish.
	broker.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
