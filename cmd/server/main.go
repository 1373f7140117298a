package main

import (
	"context"
	"errors"
	"livepoll/internal/app"
	"livepoll/internal/config"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	configPath string
	addrFlag   string
)

var rootCmd = &cobra.Command{
	Use:           "livepoll-server",
	Short:         "Run the live classroom poll server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if addrFlag != "" {
			cfg.HTTPAddr = addrFlag
		}
		setupLogging(cfg)
		return serve(cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", os.Getenv("LIVEPOLL_CONFIG"), "path to a TOML config file")
	rootCmd.Flags().StringVar(&addrFlag, "addr", "", "HTTP listen address (overrides config)")
}

// @title Live Poll API
// @version 1.0
// @description Live classroom polls with real-time results
// @host localhost:8080
// @BasePath /v1
func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func serve(cfg *config.Config) error {
	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.HTTPAddr, "moderator", cfg.ModeratorUsername)
		slog.Info("endpoints",
			"rest", "/v1/auth/login /v1/participants /v1/polls /v1/chat",
			"ws", "/v1/ws?token=...",
			"health", "/health")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err, ok := <-errCh:
		if ok {
			return err
		}
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("server exited")
	return nil
}
