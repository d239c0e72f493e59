package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"photo_sync_bot/internal/bot"
	"photo_sync_bot/internal/config"
	"photo_sync_bot/internal/pkg/album"
	"photo_sync_bot/internal/pkg/media"
	"photo_sync_bot/internal/pkg/photos"
	"photo_sync_bot/internal/pkg/pipeline"
	"photo_sync_bot/internal/pkg/retry"
	"photo_sync_bot/internal/pkg/state/repository"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file, using process environment")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error().Err(err).Msg("Configuration error")
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to reach database")
	}

	repo := repository.NewPostgresStorage(db)
	if err := repo.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize schema")
	}

	var api *tgbotapi.BotAPI
	if cfg.TelegramBotAPIURL != "" {
		api, err = tgbotapi.NewBotAPIWithAPIEndpoint(cfg.TelegramBotToken, cfg.TelegramBotAPIURL+"/bot%s/%s")
	} else {
		api, err = tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Telegram client")
	}

	photosClient := photos.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRefreshToken)
	policy := retry.DefaultPolicy()

	var fetcher *media.Fetcher
	if cfg.TelegramBotAPIURL != "" {
		fetcher = media.NewFetcherWithEndpoint(api, cfg.TelegramBotToken, cfg.TelegramBotAPIURL+"/file/bot%s/%s")
	} else {
		fetcher = media.NewFetcher(api, cfg.TelegramBotToken)
	}

	resolver := album.NewResolver(repo, photosClient, policy)
	orch := pipeline.NewOrchestrator(repo, fetcher, resolver, photosClient, cfg.Limits, policy, cfg.AllowedGroupIDs)

	b := bot.New(api, orch, cfg.Workers, cfg.QueueSize)
	b.Run(ctx)
}
