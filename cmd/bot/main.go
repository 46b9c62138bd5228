package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chat-stats-bot/internal/bot"
	"github.com/chat-stats-bot/internal/config"
	"github.com/chat-stats-bot/internal/scheduler"
	"github.com/chat-stats-bot/internal/stats"
	"github.com/chat-stats-bot/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.Environment)
	logger.Info().
		Str("environment", cfg.Environment).
		Str("timezone", cfg.Timezone).
		Str("storage_backend", cfg.StorageBackend).
		Int("cache_ttl_seconds", cfg.CacheTTLSeconds).
		Msg("Starting chat stats bot")

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage backend
	var store storage.Store
	switch cfg.StorageBackend {
	case "supabase":
		logger.Info().Msg("Initializing Supabase store...")
		store, err = storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTimeout, logger)
	default:
		logger.Info().Str("path", cfg.SQLitePath).Msg("Initializing SQLite store...")
		store, err = storage.NewSQLiteStore(cfg.SQLitePath, logger)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create store")
	}

	// Initialize counter service
	statsService, err := stats.NewService(
		store,
		cfg.Timezone,
		time.Duration(cfg.CacheTTLSeconds)*time.Second,
		cfg.RankedLimit,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create stats service")
	}

	// Initialize bot
	logger.Info().Msg("Initializing Telegram bot...")
	telegramBot, err := bot.New(cfg, statsService, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create bot")
	}

	logger.Info().
		Str("username", telegramBot.GetUsername()).
		Interface("allowed_chat_ids", cfg.AllowedChatIDs).
		Msg("Bot initialized successfully")

	// Initialize scheduler: rollover at midnight, report at 23:59, hourly snapshot
	sched, err := scheduler.New(cfg.Timezone, scheduler.Jobs{
		Rollover: func(ctx context.Context, now time.Time) {
			summary, err := statsService.RolloverAll(ctx, now)
			if err != nil {
				logger.Error().Err(err).Msg("Scheduled rollover failed, will retry at next boundary")
				return
			}
			telegramBot.SendRolloverReport(summary)
		},
		Report: func(ctx context.Context, now time.Time) {
			if err := statsService.Snapshot(ctx, now); err != nil {
				logger.Error().Err(err).Msg("End-of-day snapshot failed")
			}
		},
		Snapshot: func(ctx context.Context, now time.Time) {
			if err := statsService.Snapshot(ctx, now); err != nil {
				logger.Error().Err(err).Msg("Hourly snapshot failed")
			}
		},
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	if err := sched.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start bot in a goroutine
	botErrChan := make(chan error, 1)
	go func() {
		if err := telegramBot.Start(ctx); err != nil {
			botErrChan <- err
		}
	}()

	logger.Info().Msg("Bot is running. Press Ctrl+C to stop.")

	// Wait for termination signal or bot error
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
	case err := <-botErrChan:
		logger.Error().Err(err).Msg("Bot stopped with error")
	}

	// Graceful shutdown: stop accepting events, let in-flight mutations
	// finish, stop the scheduler, close the store.
	logger.Info().Msg("Initiating graceful shutdown...")
	cancel()

	logger.Info().Msg("Stopping scheduler...")
	sched.Stop()

	// Give the bot some time to finish processing
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Create a channel to signal shutdown complete
	done := make(chan struct{})
	go func() {
		telegramBot.Stop() // This will wait for WaitGroup internally
		close(done)
	}()

	// Wait for shutdown or timeout
	select {
	case <-shutdownCtx.Done():
		logger.Warn().Msg("Shutdown timeout exceeded, some events may be lost")
	case <-done:
		logger.Info().Msg("Graceful shutdown completed")
	}

	if err := store.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close store")
	}

	logger.Info().Msg("Bot stopped")
}

// setupLogger configures and returns a zerolog logger
func setupLogger(level, environment string) zerolog.Logger {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	// Configure output format
	var logger zerolog.Logger
	if environment == "development" {
		// Pretty console output for development
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Caller().Logger()
	} else {
		// JSON output for production
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	return logger
}
