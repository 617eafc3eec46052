// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within waypoint.
//
// Publishing never blocks: events are queued on a buffered channel and the
// single dispatch goroutine started by Start delivers them to subscribers one
// at a time. That goroutine is the execution context every subscriber runs
// on, so subscribers never race each other.
package eventbus

import (
	"time"

	"github.com/colonyops/waypoint/internal/core/route"
)

// Event names a topic on the bus.
type Event string

// Keep list sorted A-Z
const (
	EventRouteLoaded       Event = "route.loaded"
	EventRouteSaved        Event = "route.saved"
	EventStopStatusChanged Event = "stop.status-changed"
	EventSystemArrived     Event = "system.arrived"
)

// RouteLoadedPayload is emitted when a new route replaces the current one.
type RouteLoadedPayload struct {
	Stops  int
	Source string
}

// RouteSavedPayload is emitted after the route was persisted.
type RouteSavedPayload struct {
	Path  string
	Stops int
}

// Sources of a status change.
const (
	SourceJournal  = "journal"
	SourceManual   = "manual"
	SourceAutoSkip = "auto-skip"
	SourceExternal = "external"
)

// StopStatusChangedPayload is emitted when a stop's status actually changed.
type StopStatusChangedPayload struct {
	Name   string
	Old    route.Status
	New    route.Status
	Source string
}

// SystemArrivedPayload is emitted for every jump the journal reports, whether
// or not the system is on the route.
type SystemArrivedPayload struct {
	System    string
	Timestamp time.Time
	File      string
}
