package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonyops/waypoint/internal/core/eventbus"
	"github.com/colonyops/waypoint/internal/core/route"
)

const refreshInterval = time.Second

// Messages delivered from the event bus.
type (
	arrivedMsg       eventbus.SystemArrivedPayload
	statusChangedMsg eventbus.StopStatusChangedPayload
	routeLoadedMsg   eventbus.RouteLoadedPayload
	routeSavedMsg    eventbus.RouteSavedPayload
)

// markDoneMsg reports the result of a mark issued from the keyboard.
type markDoneMsg struct {
	name    string
	status  route.Status
	changed bool
	err     error
}

type refreshTickMsg time.Time

func scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

// Sender delivers a message to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Forward subscribes to route events on bus and hands them to the program.
// Handlers run on the bus dispatch goroutine; the program serializes them
// onto its own update loop.
func Forward(bus *eventbus.EventBus, p Sender) {
	bus.SubscribeSystemArrived(func(e eventbus.SystemArrivedPayload) {
		p.Send(arrivedMsg(e))
	})
	bus.SubscribeStopStatusChanged(func(e eventbus.StopStatusChangedPayload) {
		p.Send(statusChangedMsg(e))
	})
	bus.SubscribeRouteLoaded(func(e eventbus.RouteLoadedPayload) {
		p.Send(routeLoadedMsg(e))
	})
	bus.SubscribeRouteSaved(func(e eventbus.RouteSavedPayload) {
		p.Send(routeSavedMsg(e))
	})
}
