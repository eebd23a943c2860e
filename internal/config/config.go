package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds the environment driven configuration shared by all processes.
type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	DatabaseURL      string `env:"DATABASE_URL"`
	RedisAddr        string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	Port             string `env:"PORT" envDefault:"8080"`

	// AdminIDs is the allow-list of Telegram user ids permitted to import and export.
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	NotificationsEnabled bool          `env:"NOTIFICATIONS_ENABLED" envDefault:"true"`
	NotifyIntervalHours  float64       `env:"NOTIFY_INTERVAL_HOURS" envDefault:"24"`
	NotifyTick           time.Duration `env:"NOTIFY_TICK" envDefault:"1m"`
	NotifyTickTimeout    time.Duration `env:"NOTIFY_TICK_TIMEOUT" envDefault:"10m"`

	DefaultLanguage string `env:"DEFAULT_LANGUAGE" envDefault:"ru"`
	Timezone        string `env:"TIMEZONE" envDefault:"UTC"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	RateLimit          float64 `env:"RATE_LIMIT" envDefault:"2"`
	RateBurst          int     `env:"RATE_BURST" envDefault:"5"`
	SessionCacheSize   int     `env:"SESSION_CACHE_SIZE" envDefault:"10000"`
	HandlerConcurrency int     `env:"HANDLER_CONCURRENCY" envDefault:"16"`
}

// Load reads an optional .env file and parses the environment into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.DefaultLanguage = strings.ToLower(strings.TrimSpace(cfg.DefaultLanguage))
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "ru"
	}
	if cfg.SessionCacheSize <= 0 {
		cfg.SessionCacheSize = 10000
	}
	if cfg.HandlerConcurrency <= 0 {
		cfg.HandlerConcurrency = 1
	}
	if cfg.NotifyTick <= 0 {
		cfg.NotifyTick = time.Minute
	}
	if cfg.NotifyTickTimeout <= 0 {
		cfg.NotifyTickTimeout = 10 * time.Minute
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NotifyInterval is the minimum time between two reminders to the same user.
// A non-positive value disables reminders.
func (c *Config) NotifyInterval() time.Duration {
	return time.Duration(c.NotifyIntervalHours * float64(time.Hour))
}

// Location resolves Timezone, used for the stats day/week/month boundaries.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// RequireTelegram and RequireDatabase are checked by the processes that need them.
func (c *Config) RequireTelegram() error {
	if strings.TrimSpace(c.TelegramBotToken) == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	return nil
}

func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	return nil
}
