package logging

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds the process logger, sets the global level and installs it as log.Logger.
func New(level, format, service string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", level, err)
		}
		lvl = parsed
	}

	var base zerolog.Logger
	switch strings.ToLower(format) {
	case "", "console":
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	case "json":
		base = zerolog.New(os.Stdout)
	default:
		return zerolog.Logger{}, fmt.Errorf("unsupported log format %q", format)
	}

	zerolog.SetGlobalLevel(lvl)
	logger := base.With().Timestamp().Str("service", service).Logger().Level(lvl)
	log.Logger = logger
	return logger, nil
}
