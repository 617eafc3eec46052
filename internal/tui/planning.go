package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonyops/waypoint/internal/core/styles"
)

// PlanDone tells a Planning view that the optimization returned.
type PlanDone struct{}

// Planning is an inline spinner shown while a route is optimized in the
// background.
type Planning struct {
	label       string
	started     time.Time
	now         func() time.Time
	spinner     spinner.Model
	quit        key.Binding
	done        bool
	interrupted bool
}

// NewPlanning creates a Planning view labelled with label.
func NewPlanning(label string) Planning {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.ProgressStyle

	return Planning{
		label:   label,
		started: time.Now(),
		now:     time.Now,
		spinner: sp,
		quit:    DefaultKeyMap().Quit,
	}
}

// Interrupted reports whether the user quit before the plan finished.
func (m Planning) Interrupted() bool {
	return m.interrupted
}

func (m Planning) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Planning) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case PlanDone:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if key.Matches(msg, m.quit) {
			m.interrupted = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Planning) View() string {
	if m.done || m.interrupted {
		return ""
	}
	elapsed := m.now().Sub(m.started).Truncate(time.Second)
	return fmt.Sprintf("%s %s %s\n", m.spinner.View(), m.label, styles.MutedStyle.Render(elapsed.String()))
}
