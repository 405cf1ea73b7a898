package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"catwatch/internal/config"
	"catwatch/internal/extract"
	"catwatch/internal/fetcher"
	"catwatch/internal/notify"
	"catwatch/internal/pipeline"
	"catwatch/internal/seen"
	"catwatch/internal/server"
	"catwatch/internal/subscribers"
	"catwatch/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	directory, err := subscribers.NewSQLite(cfg.DatabasePath, cfg.FallbackChatID)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = directory.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisClient, err := seen.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Error("connect redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()
	store := seen.NewRedis(redisClient)

	sender, err := telegram.New(cfg.TelegramBotToken, log)
	if err != nil {
		log.Error("create telegram sender", "error", err)
		os.Exit(1)
	}

	extractor, err := extract.New(cfg.ListingURL, cfg.Collection, log)
	if err != nil {
		log.Error("create extractor", "error", err)
		os.Exit(1)
	}

	notifier := notify.New(sender, cfg.MaxNotify, cfg.ListingURL, log)
	pipe := pipeline.New(cfg, fetcher.New(http.DefaultClient), extractor, store, directory, notifier, log)
	srv := server.New(cfg.ListenAddr, cfg.TriggerSecret, pipe, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info("catwatch started", "listing_url", cfg.ListingURL)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("http server", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}

	log.Info("catwatch stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
