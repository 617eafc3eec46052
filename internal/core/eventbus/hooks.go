package eventbus

import "sync"

// hookList is a copy-on-read list of observer callbacks.
type hookList[F any] struct {
	mu  sync.RWMutex
	fns []F
}

func (h *hookList[F]) add(fn F) {
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *hookList[F]) snapshot() []F {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]F(nil), h.fns...)
}

type hooks struct {
	publish hookList[func(Event, any)]
	drop    hookList[func(Event, any)]
	panic   hookList[func(Event, any, any)]
}

// OnPublish registers fn to run after an event was queued.
func (bus *EventBus) OnPublish(fn func(Event, any)) { bus.hooks.publish.add(fn) }

// OnDrop registers fn to run when an event is discarded because the queue is
// full.
func (bus *EventBus) OnDrop(fn func(Event, any)) { bus.hooks.drop.add(fn) }

// OnPanic registers fn to run when a subscriber panics. The recovered value
// is passed as the last argument.
func (bus *EventBus) OnPanic(fn func(Event, any, any)) { bus.hooks.panic.add(fn) }

// send queues an event without blocking. Publishers run on the tailer and
// command goroutines, so a full queue drops instead of stalling them.
func (bus *EventBus) send(event Event, payload any) {
	select {
	case bus.ch <- envelope{event: event, payload: payload}:
		for _, fn := range bus.hooks.publish.snapshot() {
			fn(event, payload)
		}
	default:
		for _, fn := range bus.hooks.drop.snapshot() {
			fn(event, payload)
		}
	}
}

func (bus *EventBus) reportPanic(event Event, payload any, recovered any) {
	for _, fn := range bus.hooks.panic.snapshot() {
		func() {
			defer func() { _ = recover() }()
			fn(event, payload, recovered)
		}()
	}
}
