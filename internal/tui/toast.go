package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonyops/waypoint/internal/core/styles"
)

const (
	defaultToastTTL   = 5 * time.Second
	defaultMaxToasts  = 3
	toastTickInterval = 100 * time.Millisecond
)

type toastLevel int

const (
	levelInfo toastLevel = iota
	levelWarning
	levelError
)

type toast struct {
	level     toastLevel
	message   string
	remaining time.Duration
}

type toastTickMsg time.Time

func scheduleToastTick() tea.Cmd {
	return tea.Tick(toastTickInterval, func(t time.Time) tea.Msg {
		return toastTickMsg(t)
	})
}

// toastController keeps short-lived notices such as arrivals and failed
// marks. The newest toast is last.
type toastController struct {
	toasts  []toast
	ticking bool
}

func (c *toastController) push(level toastLevel, message string) {
	c.toasts = append(c.toasts, toast{level: level, message: message, remaining: defaultToastTTL})
	if len(c.toasts) > defaultMaxToasts {
		c.toasts = c.toasts[len(c.toasts)-defaultMaxToasts:]
	}
}

// tick counts every toast down by d and drops the expired ones.
func (c *toastController) tick(d time.Duration) {
	alive := c.toasts[:0]
	for _, t := range c.toasts {
		t.remaining -= d
		if t.remaining > 0 {
			alive = append(alive, t)
		}
	}
	c.toasts = alive
}

func (c *toastController) empty() bool {
	return len(c.toasts) == 0
}

// startTicking returns the tick command when no tick is pending.
func (c *toastController) startTicking() tea.Cmd {
	if c.ticking || c.empty() {
		return nil
	}
	c.ticking = true
	return scheduleToastTick()
}

func (c *toastController) view() string {
	if c.empty() {
		return ""
	}

	lines := make([]string, 0, len(c.toasts))
	for _, t := range c.toasts {
		switch t.level {
		case levelError:
			lines = append(lines, styles.ErrorStyle.Render("✗ "+t.message))
		case levelWarning:
			lines = append(lines, styles.WarningStyle.Render("! "+t.message))
		default:
			lines = append(lines, styles.ProgressStyle.Render(styles.IconDot+" "+t.message))
		}
	}
	return strings.Join(lines, "\n")
}
