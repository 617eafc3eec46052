// Package testbus runs a real EventBus for tests and records what it
// delivers.
package testbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/waypoint/internal/core/eventbus"
)

const pollEvery = 5 * time.Millisecond

// Delivery is one event as seen by a subscriber.
type Delivery struct {
	Event   eventbus.Event
	Payload any
}

// Bus is a started EventBus that records every delivered event.
type Bus struct {
	*eventbus.EventBus

	mu        sync.Mutex
	delivered []Delivery
}

// New starts a bus with a small queue and records every topic. The dispatch
// goroutine stops when the test ends.
func New(t *testing.T) *Bus {
	t.Helper()

	tb := &Bus{EventBus: eventbus.New(64)}

	watch(tb, eventbus.EventRouteLoaded, tb.SubscribeRouteLoaded)
	watch(tb, eventbus.EventRouteSaved, tb.SubscribeRouteSaved)
	watch(tb, eventbus.EventStopStatusChanged, tb.SubscribeStopStatusChanged)
	watch(tb, eventbus.EventSystemArrived, tb.SubscribeSystemArrived)

	ctx, cancel := context.WithCancel(context.Background())
	go tb.Start(ctx)
	t.Cleanup(cancel)

	return tb
}

func watch[T any](tb *Bus, event eventbus.Event, subscribe func(func(T))) {
	subscribe(func(p T) {
		tb.mu.Lock()
		tb.delivered = append(tb.delivered, Delivery{Event: event, Payload: p})
		tb.mu.Unlock()
	})
}

// Payloads returns the delivered payloads of one topic, oldest first.
func (tb *Bus) Payloads(event eventbus.Event) []any {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	var out []any
	for _, d := range tb.delivered {
		if d.Event == event {
			out = append(out, d.Payload)
		}
	}
	return out
}

// StatusChanges returns the delivered stop.status-changed payloads.
func (tb *Bus) StatusChanges() []eventbus.StopStatusChangedPayload {
	return typed[eventbus.StopStatusChangedPayload](tb, eventbus.EventStopStatusChanged)
}

// Arrivals returns the delivered system.arrived payloads.
func (tb *Bus) Arrivals() []eventbus.SystemArrivedPayload {
	return typed[eventbus.SystemArrivedPayload](tb, eventbus.EventSystemArrived)
}

func typed[T any](tb *Bus, event eventbus.Event) []T {
	raw := tb.Payloads(event)
	out := make([]T, 0, len(raw))
	for _, p := range raw {
		out = append(out, p.(T))
	}
	return out
}

// Reset forgets everything delivered so far.
func (tb *Bus) Reset() {
	tb.mu.Lock()
	tb.delivered = nil
	tb.mu.Unlock()
}

// WaitFor reports whether an event of the topic was delivered before timeout.
func (tb *Bus) WaitFor(event eventbus.Event, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if len(tb.Payloads(event)) > 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollEvery)
	}
}

// AssertPublished fails the test unless the topic is delivered within 500ms.
func (tb *Bus) AssertPublished(t *testing.T, event eventbus.Event) {
	t.Helper()
	if !tb.WaitFor(event, 500*time.Millisecond) {
		t.Errorf("expected %q to be delivered", event)
	}
}

// AssertNotPublished waits for wait and fails the test if the topic was
// delivered in the meantime.
func (tb *Bus) AssertNotPublished(t *testing.T, event eventbus.Event, wait time.Duration) {
	t.Helper()
	time.Sleep(wait)
	if n := len(tb.Payloads(event)); n > 0 {
		t.Errorf("expected no %q, got %d", event, n)
	}
}
