package main

import (
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"voicebot/internal/config"
	"voicebot/internal/logging"
	"voicebot/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if _, err := logging.New(cfg.LogLevel, cfg.LogFormat, "scheduler"); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		&asynq.SchedulerOpts{Location: loc},
	)

	spec := "@every " + cfg.NotifyTick.String()
	entryID, err := scheduler.Register(spec, tasks.NewNotifyTickTask(), tasks.NotifyTickOptions(cfg.NotifyTick, cfg.NotifyTickTimeout)...)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not register task")
	}
	log.Info().Str("entry", entryID).Str("spec", spec).Bool("enabled", cfg.NotificationsEnabled).Msg("Notify tick registered")

	log.Info().Str("commit", CommitSHA).Msg("Scheduler starting")
	if err := scheduler.Run(); err != nil {
		log.Fatal().Err(err).Msg("Could not run scheduler")
	}
}
