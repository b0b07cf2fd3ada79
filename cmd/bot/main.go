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

	openai "github.com/sashabaranov/go-openai"

	"dealwatch/internal/bot"
	"dealwatch/internal/browser"
	"dealwatch/internal/cache"
	"dealwatch/internal/config"
	"dealwatch/internal/engine"
	"dealwatch/internal/maps"
	"dealwatch/internal/quality"
	"dealwatch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	for _, p := range []string{cfg.DatabasePath, cfg.CachePath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				log.Error("create data directory", "path", dir, "error", err)
				os.Exit(1)
			}
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	c := cache.New(cfg.CachePath, log)

	session := browser.NewSession(true, log)
	if err := session.Start(); err != nil {
		log.Error("start browser", "error", err)
		os.Exit(1)
	}
	defer session.Stop()

	b, err := bot.New(cfg.BotToken, store, c, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	eng := engine.New(
		session,
		c,
		maps.New(http.DefaultClient, cfg.MapsKey, log),
		quality.New(openai.NewClient(cfg.OpenAIKey), cfg.OpenAIModel),
		store,
		b,
		cfg.Origin,
		log,
	)
	b.SetEngine(eng)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot")

	go eng.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
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
