package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cloudsub/subsync/internal/api"
	v1 "github.com/cloudsub/subsync/internal/api/v1"
	"github.com/cloudsub/subsync/internal/config"
	"github.com/cloudsub/subsync/internal/events"
	"github.com/cloudsub/subsync/internal/subscription/sqlite"
	"github.com/cloudsub/subsync/internal/sync"
	"github.com/cloudsub/subsync/internal/telemetry"
	"github.com/cloudsub/subsync/pkg/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync bridge server",
	Long: `Start the sync bridge server.

The server requires the bridge configuration file (--config) and the host's
subscription database (--db). Subscription lifecycle events arrive on the
API surface and are mirrored to the configured remote endpoint.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 15 * time.Second // Must cover a full delivery attempt
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 20 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to bridge configuration file (YAML format, required)")
	serveCmd.Flags().String("db", "", "Path to the subscription database (required)")
	serveCmd.Flags().Bool("otel-enabled", false, "Enable OpenTelemetry metrics export")
	serveCmd.Flags().String("otel-endpoint", telemetry.DefaultEndpoint, "OTLP collector endpoint (host:port)")
	serveCmd.Flags().Bool("otel-insecure", false, "Allow plain HTTP to the OTLP collector")

	for _, flag := range []string{"address", "config", "db", "otel-enabled", "otel-endpoint", "otel-insecure"} {
		if err := viper.BindPFlag(flag, serveCmd.Flags().Lookup(flag)); err != nil {
			slog.Error("Failed to bind flag", "flag", flag, "error", err)
			os.Exit(1)
		}
	}

	for _, flag := range []string{"config", "db"} {
		if err := serveCmd.MarkFlagRequired(flag); err != nil {
			slog.Error("Failed to mark flag as required", "flag", flag, "error", err)
			os.Exit(1)
		}
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	address := viper.GetString("address")

	slog.Info("Starting sync bridge server", "address", address)

	configPath := viper.GetString("config")
	configStore, err := config.NewFileStore(configPath)
	if err != nil {
		return err
	}
	manager, err := config.NewManager(ctx, configStore)
	if err != nil {
		return err
	}
	cfg := manager.Snapshot()
	slog.Info("Loaded configuration",
		"path", configPath,
		"enabled", cfg.Enabled,
		"remote_configured", cfg.RemoteURL != "")

	store, err := sqlite.Open(viper.GetString("db"))
	if err != nil {
		return fmt.Errorf("failed to open subscription database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close subscription database", "error", err)
		}
	}()

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:        viper.GetBool("otel-enabled"),
		ServiceVersion: versions.GetVersionInfo().Version,
		Endpoint:       viper.GetString("otel-endpoint"),
		Insecure:       viper.GetBool("otel-insecure"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	dispatcher := sync.NewDispatcher(manager, sync.NewHTTPClient(),
		sync.WithMetrics(tel.Dispatch))

	bus := events.NewBus()
	sync.NewIntake(store, dispatcher).Register(bus)

	reconciler := sync.NewReconciler(manager, store, dispatcher,
		sync.WithBackfillMetrics(tel.Backfill))

	// A sync_history flag left armed by a previous run (or set while the
	// bridge was down) starts the backfill immediately.
	if cfg.SyncHistory {
		slog.Info("Backfill toggle armed, starting backfill")
		reconciler.Trigger(ctx)
	}

	router := api.NewServer(
		v1.NewRoutes(manager, reconciler, bus),
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
		),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// An in-flight backfill is cancelled, not completed: the toggle stays
	// armed and the run resumes on the next start.
	reconciler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}
