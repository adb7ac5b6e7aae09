package logger

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shopmirror/internal/platform/config"
)

// Init configures the global zerolog logger. The pipeline emits one structured
// "webhook delivery" event per attempt, so JSON to stdout is the default;
// console format is for local development only.
func Init(cfg config.LoggingConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	switch {
	case cfg.Output == "file" && cfg.FilePath != "":
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			log.Error().Err(err).Msg("log directory unavailable, keeping stdout")
			return
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			log.Error().Err(err).Msg("log file unavailable, keeping stdout")
			return
		}
		log.Logger = zerolog.New(file).With().Timestamp().Str("service", "shopmirror").Logger()
	case cfg.Format == "text":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	default:
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "shopmirror").Logger()
	}
}
