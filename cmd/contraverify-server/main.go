package main

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

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraverify/internal/bridge"
	"github.com/pendergraft/contraverify/internal/bridge/ws"
	"github.com/pendergraft/contraverify/internal/config"
	"github.com/pendergraft/contraverify/internal/observability/metrics"
	"github.com/pendergraft/contraverify/internal/server"
	"github.com/pendergraft/contraverify/internal/storage"
	"github.com/pendergraft/contraverify/internal/verification/domain"
	"github.com/pendergraft/contraverify/pkg/client"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "contraverify-server",
		Short:   "Contraverify server - contract verification plugin backend",
		Version: version,
	}

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAPIKeyCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to the IDE bridge and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage the stored verification API key",
	}

	cmd.AddCommand(newAPIKeySetCmd())
	cmd.AddCommand(newAPIKeyShowCmd())

	return cmd
}

func newAPIKeySetCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the API key in the configured storage",
		Long: `Store the API key sent with every verification request.

EXAMPLES:
  STORAGE_TYPE=sqlite SQLITE_PATH=./data/contraverify.db \
    contraverify-server apikey set --key "$TANGERINE_API_KEY"
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPIKeySet(key)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "API key (required)")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func newAPIKeyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show whether an API key is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPIKeyShow()
		},
	}
}

// openStore opens the configured storage with errors-only logging
func openStore() (storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.New(cfg.Storage, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, nil
}

func runAPIKeySet(key string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Set(context.Background(), domain.APIKeyStorageKey, key); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}

	fmt.Println("✅ API key saved")
	return nil
}

func runAPIKeyShow() error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	key, err := store.Get(context.Background(), domain.APIKeyStorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Println("No API key stored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading API key: %w", err)
	}

	fmt.Printf("API key: %s\n", domain.MaskAPIKey(key))
	return nil
}

// Server command

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg)
	logger.Info("starting contraverify-server", "version", version)

	metrics.Init(cfg.Metrics.Enabled, "contraverify-server")

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	dialCtx, cancelDial := context.WithTimeout(context.Background(), 15*time.Second)
	conn, err := ws.Dial(dialCtx, cfg.Bridge.URL, cfg.Bridge.PluginName, logger)
	cancelDial()
	if err != nil {
		return fmt.Errorf("connecting to IDE bridge: %w", err)
	}
	host := bridge.NewHost(conn)
	defer host.Close()
	logger.Info("bridge connected", "url", cfg.Bridge.URL, "plugin", cfg.Bridge.PluginName)

	api := client.New(
		client.WithTimeout(time.Duration(cfg.Verification.HTTPTimeout)*time.Second),
		client.WithUserAgent("contraverify-server/"+version),
	)

	srv := server.New(cfg, store, host, api, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
