package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the root service logger. Components derive their own with
// logger.With().Str("component", ...).
func New(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "grocery-backend").
		Logger()
}
