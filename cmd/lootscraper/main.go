package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/analytics"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/announce"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/browser"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/config"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/downstream"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/enrich"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/feed"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/pipeline"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/reconcile"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/scheduler"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/storage/sqlite"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/upload"
)

var (
	configPath = flag.String("config", "config.toml", "Path to configuration file")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	logger.Info("loading configuration", "path", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	store, err := sqlite.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("storage close failed", "error", err)
		}
	}()

	registry, err := config.BuildRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("build adapters: %w", err)
	}

	manager := browser.NewManager(browser.Config{
		Headless:  cfg.Browser.Headless,
		UserAgent: cfg.Browser.UserAgent,
	}, logger)

	fanout := downstream.NewFanout(store.Offers(), logger)

	if cfg.Enrich.Enabled {
		fanout.WithEnricher(enrich.NewSteamEnricher(store.Offers(), logger))
	}

	if cfg.Feeds.Enabled {
		writer := feed.NewWriter(feed.Config{
			Dir:        cfg.Feeds.Dir,
			BaseURL:    cfg.Feeds.BaseURL,
			Title:      cfg.Feeds.Title,
			AuthorName: cfg.Feeds.AuthorName,
			AuthorMail: cfg.Feeds.AuthorMail,
			MaxEntries: cfg.Feeds.MaxEntries,
		}, store.Offers(), logger)
		fanout.WithFeeds(writer)

		if cfg.Upload.Enabled {
			uploader := upload.New(cfg.Upload.Endpoint, cfg.Upload.Username, cfg.Upload.Password, logger)
			fanout.WithUpload(uploader, cfg.Feeds.Dir)
		}
	}

	announcers, err := buildAnnouncers(cfg)
	if err != nil {
		return err
	}
	fanout.WithAnnouncers(announcers...)

	sched := scheduler.New(scheduler.Config{
		Tick:               config.Duration(cfg.Scheduler.Tick),
		RunTimeout:         config.Duration(cfg.Scheduler.RunTimeout),
		IdleTimeout:        config.Duration(cfg.Browser.IdleTimeout),
		RestartAfterRuns:   cfg.Browser.RestartAfterRuns,
		RestartAfterUptime: config.Duration(cfg.Browser.RestartAfterUptime),
	},
		store.Runs(), registry,
		pipeline.New(logger),
		reconcile.New(store.Offers(), logger),
		manager, logger,
	).WithDownstream(fanout)

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		sched.WithRecorder(analytics.NewRedisSink(client))
	}

	return sched.Run(ctx)
}

func buildAnnouncers(cfg *config.Config) ([]announce.Announcer, error) {
	var announcers []announce.Announcer

	if cfg.Telegram.Enabled {
		tg, err := announce.NewTelegramAnnouncer(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("telegram announcer: %w", err)
		}
		announcers = append(announcers, tg)
	}
	if cfg.Discord.Enabled {
		dc, err := announce.NewDiscordAnnouncer(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("discord announcer: %w", err)
		}
		announcers = append(announcers, dc)
	}

	return announcers, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
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
