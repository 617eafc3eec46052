package eventbus

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RegisterDebugLogger logs bus traffic: every queued event at debug level
// with its payload summarized, drops as warnings and subscriber panics as
// errors.
func RegisterDebugLogger(bus *EventBus, logger zerolog.Logger) {
	bus.OnPublish(func(event Event, payload any) {
		describe(logger.Debug(), event, payload).Msg("event queued")
	})

	bus.OnDrop(func(event Event, payload any) {
		describe(logger.Warn(), event, payload).Msg("event dropped, queue full")
	})

	bus.OnPanic(func(event Event, payload any, recovered any) {
		describe(logger.Error(), event, payload).
			Str("panic", fmt.Sprint(recovered)).
			Msg("subscriber panicked")
	})
}

// describe adds the identifying fields of a payload to e.
func describe(e *zerolog.Event, event Event, payload any) *zerolog.Event {
	e = e.Str("event", string(event))

	switch p := payload.(type) {
	case RouteLoadedPayload:
		e = e.Int("stops", p.Stops).Str("source", p.Source)
	case RouteSavedPayload:
		e = e.Int("stops", p.Stops).Str("path", p.Path)
	case StopStatusChangedPayload:
		e = e.Str("system", p.Name).
			Str("from", string(p.Old)).
			Str("to", string(p.New)).
			Str("source", p.Source)
	case SystemArrivedPayload:
		e = e.Str("system", p.System).Time("at", p.Timestamp)
	}
	return e
}
