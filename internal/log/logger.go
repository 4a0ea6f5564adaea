// Package log builds the zerolog root logger shared by every binary.
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger tagged with the service name. Production emits
// plain JSON at info level; everything else gets the console writer and
// debug level.
func New(environment, service string) zerolog.Logger {
	var logger zerolog.Logger
	if environment == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		logger = zerolog.New(os.Stdout)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	return logger.With().
		Timestamp().
		Str("env", environment).
		Str("service", service).
		Logger()
}
