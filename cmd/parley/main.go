// Command parley runs the chat backend: an HTTP API that relays chat
// messages to OpenRouter and keeps per-session conversation history in
// memory.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shillcollin/parley/internal/chat"
	"github.com/shillcollin/parley/internal/config"
	"github.com/shillcollin/parley/internal/conversation"
	"github.com/shillcollin/parley/internal/httpapi"
	"github.com/shillcollin/parley/internal/obs"
	"github.com/shillcollin/parley/internal/providers/openrouter"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obsShutdown, err := initObservability(ctx, cfg)
	if err != nil {
		logger.Warn("observability init failed", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := obsShutdown(shutdownCtx); err != nil {
				logger.Warn("observability shutdown failed", "error", err)
			}
		}()
	}

	store := conversation.NewStore(conversation.Options{
		MaxHistory:     cfg.MaxConversationHistory,
		SessionTimeout: cfg.SessionTimeout,
		Logger:         logger,
	})
	store.Start()
	defer store.Stop()

	client := openrouter.New(
		openrouter.WithAPIKey(cfg.OpenRouterAPIKey),
		openrouter.WithBaseURL(cfg.OpenRouterBaseURL),
		openrouter.WithModel(cfg.ModelName),
		openrouter.WithReferer(cfg.CORSOrigin),
		openrouter.WithTimeout(cfg.RequestTimeout),
	)

	chatService := chat.NewService(store, client, cfg.RequestTimeout, logger)
	api := httpapi.NewServer(cfg, store, chatService, client, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", server.Addr,
			"env", cfg.Env,
			"model", cfg.ModelName,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func initObservability(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	opts := obs.DefaultOptions()
	opts.Environment = cfg.Env
	opts.Version = httpapi.Version
	switch strings.ToLower(cfg.ObsExporter) {
	case "stdout":
		opts.Exporter = obs.ExporterStdout
	default:
		opts.Exporter = obs.ExporterNone
	}
	return obs.Init(ctx, opts)
}
