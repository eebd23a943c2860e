package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"voicebot/internal/config"
	"voicebot/internal/db"
	"voicebot/internal/export"
	"voicebot/internal/i18n"
	"voicebot/internal/logging"
	"voicebot/internal/messenger"
	"voicebot/internal/notifier"
	"voicebot/internal/worker"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if _, err := logging.New(cfg.LogLevel, cfg.LogFormat, "worker"); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	store, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()
	if err := store.Migrate(context.Background()); err != nil {
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

	reminders := notifier.New(store, tg, tr, notifier.Config{
		Enabled:  cfg.NotificationsEnabled,
		Interval: cfg.NotifyInterval(),
		Language: cfg.DefaultLanguage,
	})

	mux := asynq.NewServeMux()
	worker.NewTaskHandler(reminders, export.NewExporter(store, tg, tr)).Register(mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var servers []*asynq.Server
	for _, c := range worker.ServerConfigs() {
		srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, c)
		if err := srv.Start(mux); err != nil {
			log.Fatal().Err(err).Msg("Could not start worker")
		}
		servers = append(servers, srv)
	}

	log.Info().Str("commit", CommitSHA).Int("queues", len(servers)).Msg("Worker started")
	<-ctx.Done()

	log.Info().Msg("Worker shutting down")
	for _, srv := range servers {
		srv.Shutdown()
	}
}
