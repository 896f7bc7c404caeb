// Package log builds the process-wide zerolog logger.
package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger writing to stderr at the given level.
// Unrecognized level strings fall back to info.
func New(level string) *zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
	return &logger
}
