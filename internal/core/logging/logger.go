package logging

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component creates a new logger with a component identifier.
// Uses the "cmp" key for consistency with zerolog conventions.
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger()
}

// ForContext returns a Component logger that also carries the session and
// route fields found in ctx, for loggers used outside a single event's
// context such as long-running goroutines.
func ForContext(ctx context.Context, name string) zerolog.Logger {
	c := log.With().Str("cmp", name)
	if id := GetSessionID(ctx); id != "" {
		c = c.Str("session_id", id)
	}
	if r := GetRoute(ctx); r != "" {
		c = c.Str("route", r)
	}
	return c.Logger()
}
