package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"market_watcher/internal/classifier"
	"market_watcher/internal/config"
	"market_watcher/internal/notifier"
	"market_watcher/internal/scheduler"
	"market_watcher/internal/seen"
	"market_watcher/internal/service"
	"market_watcher/internal/source/reddit"
	"market_watcher/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration; validation failures are fatal.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Notification channels
	var notifiers []service.Notifier

	telegram := notifier.NewTelegram(notifier.TelegramConfig{
		Enabled:  cfg.Telegram.Enabled,
		APIURL:   cfg.Telegram.APIURL,
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
		Timeout:  cfg.Telegram.Timeout,
	}, logger)
	notifiers = append(notifiers, telegram)

	if cfg.RabbitMQ.Enabled {
		rabbit, err := notifier.NewRabbitMQ(notifier.RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbit.Close()
		notifiers = append(notifiers, rabbit)
	}

	// Stores
	seenStore := seen.New()
	snapshotStore := postgres.NewSnapshotStore(db)
	cursorStore := postgres.NewCursorStore(db)
	txManager := postgres.NewTransactionManager(db)

	// Reddit source
	redditSource := reddit.New(reddit.Config{
		BaseURL:        cfg.Reddit.BaseURL,
		UserAgent:      cfg.Reddit.UserAgent,
		PageLimit:      cfg.Reddit.PageLimit,
		Timeout:        cfg.Reddit.Timeout,
		MaxAttempts:    cfg.Reddit.Retry.MaxAttempts,
		InitialBackoff: cfg.Reddit.Retry.InitialBackoff,
		MaxBackoff:     cfg.Reddit.Retry.MaxBackoff,
	}, logger)

	// Classifier client
	classifierClient := classifier.New(classifier.Config{
		BaseURL:            cfg.OpenAI.BaseURL,
		APIKey:             cfg.OpenAI.APIKey,
		Model:              cfg.OpenAI.Model,
		MaxTokens:          cfg.OpenAI.MaxTokens,
		Temperature:        cfg.OpenAI.Temperature,
		SentimentCharLimit: cfg.Watch.SentimentCharLimit,
		Timeout:            cfg.OpenAI.Timeout,
		MaxAttempts:        cfg.OpenAI.Retry.MaxAttempts,
		InitialBackoff:     cfg.OpenAI.Retry.InitialBackoff,
		MaxBackoff:         cfg.OpenAI.Retry.MaxBackoff,
	}, logger)

	watcher := service.NewWatcher(
		redditSource,
		classifierClient,
		notifiers,
		seenStore,
		cursorStore,
		snapshotStore,
		txManager,
		logger,
		cfg.Watch,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Restore dedup state from the last flush. Starting empty is safe:
	// cursors keep the fetch window bounded.
	if err := watcher.RestoreSeen(ctx); err != nil {
		logger.Warn("failed to restore seen snapshot, starting empty", "error", err)
	}

	sched := scheduler.NewScheduler(
		watcher,
		cfg.Watch.PollInterval,
		cfg.Watch.MaintenanceInterval,
		cfg.Watch.HeartbeatInterval,
		logger,
	)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting market watcher",
		"source", redditSource.Name(),
		"poll_interval", cfg.Watch.PollInterval,
		"retention_window", cfg.Watch.RetentionWindow,
		"reports", len(cfg.Watch.Reports),
		"general", len(cfg.Watch.General),
		"subreddits", len(cfg.Watch.Subreddits),
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
