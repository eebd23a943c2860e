package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"voicebot/internal/assignment"
	"voicebot/internal/config"
	"voicebot/internal/db"
	"voicebot/internal/export"
	"voicebot/internal/handlers"
	"voicebot/internal/i18n"
	"voicebot/internal/logging"
	"voicebot/internal/messenger"
	"voicebot/internal/middleware"
	"voicebot/internal/stats"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if _, err := logging.New(cfg.LogLevel, cfg.LogFormat, "server"); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	tr, err := i18n.New(cfg.DefaultLanguage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load locales")
	}
	tg, err := messenger.NewTelegram(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start Telegram client")
	}
	sessions, err := assignment.NewSessions(cfg.SessionCacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session cache")
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst, cfg.SessionCacheSize)
	aggregator := stats.NewAggregator(store)

	bot := handlers.NewBot(handlers.BotDeps{
		Engine:      assignment.NewEngine(store),
		Sessions:    sessions,
		Stats:       aggregator,
		Items:       store,
		Exporter:    export.NewExporter(store, tg, tr),
		Enqueuer:    client,
		Messenger:   tg,
		Localizer:   tr,
		Admins:      middleware.NewAllowList(cfg.AdminIDs),
		Limiter:     limiter,
		Location:    loc,
		Concurrency: cfg.HandlerConcurrency,
	})

	api := handlers.NewAPI(aggregator, store, store, loc)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(cfg.TelegramBotToken, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("commit", CommitSHA).Int("admins", len(cfg.AdminIDs)).Msg("Bot starting")
		return bot.Run(gctx, tg.Updates(gctx))
	})
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	log.Info().Msg("Server stopped")
}
