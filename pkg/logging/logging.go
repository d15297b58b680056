// Package logging configures the process-wide structured logger used by
// every component. Callers obtain a child logger scoped to their component
// name rather than writing to the global logger directly.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var base zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()
}

// SetLevel adjusts the global minimum level, e.g. from config at startup.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// SetJSON switches to JSON output, used in production/container deployments
// where logs are scraped rather than read on a terminal.
func SetJSON() {
	base = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// For returns a child logger tagged with the owning component's name.
func For(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
