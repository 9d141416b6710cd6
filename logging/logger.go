// Package logging - Global zerolog setup for the command line.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger. level is one of debug, info, warn or
// error (default info). With pretty set, output is the human-readable
// console format; otherwise one JSON object per line.
func Init(level string, pretty bool) zerolog.Logger {
	return InitWriter(os.Stderr, level, pretty)
}

// InitWriter is Init writing to w.
func InitWriter(w io.Writer, level string, pretty bool) zerolog.Logger {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}
