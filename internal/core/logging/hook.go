package logging

import (
	"github.com/rs/zerolog"
)

// ContextHook copies Fields from an event's context onto the event. Attach
// it with Logger.Hook and pass the context with Event.Ctx.
type ContextHook struct{}

// Run implements zerolog.Hook.
func (ContextHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	f := FieldsFrom(ctx)
	if f.SessionID != "" {
		e.Str("session_id", f.SessionID)
	}
	if f.Route != "" {
		e.Str("route", f.Route)
	}
}
