package eventbus

import (
	"context"
	"sync"
)

// DefaultBufferSize is the queue length used when New is given a size < 1.
const DefaultBufferSize = 256

type envelope struct {
	event   Event
	payload any
}

// EventBus queues published events and dispatches them to subscribers on the
// goroutine running Start.
type EventBus struct {
	ch chan envelope

	mu   sync.RWMutex
	subs map[Event][]func(any)

	hooks hooks
}

// New creates a bus with the given queue length.
func New(buffer int) *EventBus {
	if buffer < 1 {
		buffer = DefaultBufferSize
	}
	return &EventBus{
		ch:   make(chan envelope, buffer),
		subs: make(map[Event][]func(any)),
	}
}

// Start dispatches queued events until ctx is cancelled. It blocks.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

// Drain dispatches every event already queued and returns. It is meant for
// shutdown after Start has returned.
func (bus *EventBus) Drain() {
	for {
		select {
		case env := <-bus.ch:
			bus.dispatch(env)
		default:
			return
		}
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	subs := make([]func(any), len(bus.subs[env.event]))
	copy(subs, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range subs {
		bus.call(env, fn)
	}
}

func (bus *EventBus) call(env envelope, fn func(any)) {
	defer func() {
		if r := recover(); r != nil {
			bus.reportPanic(env.event, env.payload, r)
		}
	}()
	fn(env.payload)
}

// PublishRouteLoaded queues a route.loaded event.
func (bus *EventBus) PublishRouteLoaded(p RouteLoadedPayload) {
	bus.send(EventRouteLoaded, p)
}

// SubscribeRouteLoaded registers fn for route.loaded events.
func (bus *EventBus) SubscribeRouteLoaded(fn func(RouteLoadedPayload)) {
	bus.subscribe(EventRouteLoaded, func(p any) { fn(p.(RouteLoadedPayload)) })
}

// PublishRouteSaved queues a route.saved event.
func (bus *EventBus) PublishRouteSaved(p RouteSavedPayload) {
	bus.send(EventRouteSaved, p)
}

// SubscribeRouteSaved registers fn for route.saved events.
func (bus *EventBus) SubscribeRouteSaved(fn func(RouteSavedPayload)) {
	bus.subscribe(EventRouteSaved, func(p any) { fn(p.(RouteSavedPayload)) })
}

// PublishStopStatusChanged queues a stop.status-changed event.
func (bus *EventBus) PublishStopStatusChanged(p StopStatusChangedPayload) {
	bus.send(EventStopStatusChanged, p)
}

// SubscribeStopStatusChanged registers fn for stop.status-changed events.
func (bus *EventBus) SubscribeStopStatusChanged(fn func(StopStatusChangedPayload)) {
	bus.subscribe(EventStopStatusChanged, func(p any) { fn(p.(StopStatusChangedPayload)) })
}

// PublishSystemArrived queues a system.arrived event.
func (bus *EventBus) PublishSystemArrived(p SystemArrivedPayload) {
	bus.send(EventSystemArrived, p)
}

// SubscribeSystemArrived registers fn for system.arrived events.
func (bus *EventBus) SubscribeSystemArrived(fn func(SystemArrivedPayload)) {
	bus.subscribe(EventSystemArrived, func(p any) { fn(p.(SystemArrivedPayload)) })
}
