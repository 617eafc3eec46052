// Package tui implements the live route tracker view.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonyops/waypoint/internal/core/journal"
	"github.com/colonyops/waypoint/internal/core/route"
	"github.com/colonyops/waypoint/internal/core/styles"
	"github.com/colonyops/waypoint/internal/waypoint"
)

// Marker sets the status of a stop by name.
type Marker interface {
	Mark(ctx context.Context, name string, status route.Status) (bool, error)
}

// TailerStatus reports what the journal tailer is doing.
type TailerStatus interface {
	State() journal.State
	Cursor() (string, int64)
}

// Options configures the tracker view.
type Options struct {
	State     *route.State
	Marker    Marker
	Tailer    TailerStatus // optional
	JumpRange float64
	RoutePath string
}

// Model is the Bubble Tea model for the live tracker.
type Model struct {
	state     *route.State
	marker    Marker
	tailer    TailerStatus
	jumpRange float64
	routePath string

	stops   []route.Stop
	summary waypoint.Summary
	cursor  int
	follow  bool // cursor tracks the next stop until moved by hand

	lastArrival   string
	lastArrivalAt time.Time
	lastSaved     time.Time
	tailerState   journal.State
	journalFile   string

	width    int
	height   int
	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	toasts   *toastController
	quitting bool
}

// New creates a tracker model over opts.State.
func New(opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.ProgressStyle

	m := Model{
		state:     opts.State,
		marker:    opts.Marker,
		tailer:    opts.Tailer,
		jumpRange: opts.JumpRange,
		routePath: opts.RoutePath,
		follow:    true,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		spinner:   sp,
		toasts:    &toastController{},
	}
	m.refresh()
	return m
}

// Init starts the spinner and the periodic refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, scheduleRefresh())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case arrivedMsg:
		m.lastArrival = msg.System
		m.lastArrivalAt = msg.Timestamp
		if m.lastArrivalAt.IsZero() {
			m.lastArrivalAt = time.Now()
		}
		if m.state.Contains(msg.System) {
			m.toasts.push(levelInfo, "arrived at "+msg.System)
		} else {
			m.toasts.push(levelInfo, msg.System+" is not on the route")
		}
		m.refresh()
		return m, m.toasts.startTicking()

	case statusChangedMsg:
		m.refresh()
		return m, nil

	case routeLoadedMsg:
		m.follow = true
		m.refresh()
		return m, nil

	case routeSavedMsg:
		m.lastSaved = time.Now()
		return m, nil

	case markDoneMsg:
		switch {
		case msg.err != nil:
			m.toasts.push(levelError, msg.err.Error())
		case !msg.changed:
			m.toasts.push(levelWarning, msg.name+" is already "+string(msg.status))
		}
		m.refresh()
		return m, m.toasts.startTicking()

	case refreshTickMsg:
		m.refresh()
		return m, scheduleRefresh()

	case toastTickMsg:
		m.toasts.tick(toastTickInterval)
		m.toasts.ticking = false
		return m, m.toasts.startTicking()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		m.follow = false

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.stops)-1 {
			m.cursor++
		}
		m.follow = false

	case key.Matches(msg, m.keys.Next):
		m.follow = true
		m.refresh()

	case key.Matches(msg, m.keys.Visit):
		return m, m.mark(route.StatusVisited)

	case key.Matches(msg, m.keys.Skip):
		return m, m.mark(route.StatusSkipped)

	case key.Matches(msg, m.keys.Unvisit):
		return m, m.mark(route.StatusUnvisited)
	}

	return m, nil
}

// mark sets the status of the stop under the cursor off the update loop.
func (m Model) mark(status route.Status) tea.Cmd {
	if m.marker == nil || len(m.stops) == 0 {
		return nil
	}
	name := m.stops[m.cursor].Name
	marker := m.marker

	return func() tea.Msg {
		changed, err := marker.Mark(context.Background(), name, status)
		return markDoneMsg{name: name, status: status, changed: changed, err: err}
	}
}

// refresh rereads the route and the tailer.
func (m *Model) refresh() {
	m.stops = m.state.Snapshot()
	m.summary = waypoint.Summarize(m.stops, m.jumpRange)

	if m.follow {
		m.cursor = nextIndex(m.stops)
	}
	m.cursor = max(0, min(m.cursor, len(m.stops)-1))

	if m.tailer != nil {
		m.tailerState = m.tailer.State()
		m.journalFile, _ = m.tailer.Cursor()
	}
}

// nextIndex is the position of the first unvisited stop, or the last stop
// when the route is done.
func nextIndex(stops []route.Stop) int {
	for i, s := range stops {
		if s.Status == route.StatusUnvisited || s.Status == "" {
			return i
		}
	}
	return len(stops) - 1
}
