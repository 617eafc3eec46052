package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/colonyops/waypoint/internal/core/journal"
	"github.com/colonyops/waypoint/internal/core/styles"
)

// rows used by everything except the stop list
const chromeHeight = 9

// View renders the tracker.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := styles.CommandHeaderStyle.Render("waypoint")
	if m.routePath != "" {
		title += " " + styles.MutedStyle.Render(m.routePath)
	}
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(m.progressLine())
	b.WriteString("\n")
	b.WriteString(m.journalLine())
	b.WriteString("\n\n")

	if len(m.stops) == 0 {
		b.WriteString(styles.MutedStyle.Render("no route loaded, run `waypoint plan` first"))
		b.WriteString("\n")
	} else {
		b.WriteString(m.stopList())
	}

	if toasts := m.toasts.view(); toasts != "" {
		b.WriteString("\n")
		b.WriteString(toasts)
		b.WriteString("\n")
	}

	b.WriteString(styles.HelpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) progressLine() string {
	s := m.summary
	sep := styles.DividerStyle.Render(" " + styles.IconDot + " ")

	parts := []string{
		styles.VisitedStyle.Render(fmt.Sprintf("%d/%d visited", s.Visited, s.Total)),
		styles.SkippedStyle.Render(fmt.Sprintf("%d skipped", s.Skipped)),
		fmt.Sprintf("%d left", s.Unvisited),
		humanize.CommafWithDigits(s.Remaining, 1) + " ly",
	}
	if m.jumpRange > 0 {
		parts = append(parts, fmt.Sprintf("~%s jumps", humanize.Comma(int64(s.RemainingJumps))))
	}
	return strings.Join(parts, sep)
}

func (m Model) journalLine() string {
	var status string
	switch m.tailerState {
	case journal.StateTailing:
		status = styles.VisitedStyle.Render(styles.IconVisited) + " following " + filepath.Base(m.journalFile)
	case journal.StateLocating:
		status = m.spinner.View() + " looking for a journal"
	default:
		status = styles.MutedStyle.Render("journal not followed")
	}

	if m.lastArrival != "" {
		status += styles.DividerStyle.Render(" "+styles.IconDot+" ") +
			"last jump " + m.lastArrival + " " +
			styles.MutedStyle.Render(humanize.Time(m.lastArrivalAt))
	}
	return status
}

func (m Model) stopList() string {
	start, end := m.window()
	next := -1
	if m.summary.Next != "" {
		next = nextIndex(m.stops)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(styles.MutedStyle.Render(fmt.Sprintf("  ↑ %d more", start)))
		b.WriteString("\n")
	}
	for i := start; i < end; i++ {
		b.WriteString(m.stopRow(i, i == next))
		b.WriteString("\n")
	}
	if end < len(m.stops) {
		b.WriteString(styles.MutedStyle.Render(fmt.Sprintf("  ↓ %d more", len(m.stops)-end)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) stopRow(i int, isNext bool) string {
	s := m.stops[i]

	pointer := " "
	if i == m.cursor {
		pointer = styles.NextStopStyle.Render(styles.IconNext)
	}

	icon := styles.StatusStyle(s.Status).Render(styles.StatusIcon(s.Status))
	name := styles.StatusStyle(s.Status).Render(s.Name)
	if isNext {
		name = styles.NextStopStyle.Render(s.Name)
	}

	row := fmt.Sprintf("%s %s %3d  %s", pointer, icon, i+1, name)
	if len(s.Payload) > 0 {
		row += "  " + styles.MutedStyle.Render(strings.Join(s.Payload, ", "))
	}
	if i == m.cursor {
		row = styles.SelectedStyle.Render(row)
	}
	return row
}

// window returns the slice of stops to draw, keeping the cursor visible.
func (m Model) window() (int, int) {
	n := len(m.stops)
	rows := m.height - chromeHeight
	if m.height == 0 || rows >= n {
		return 0, n
	}
	rows = max(rows, 1)

	start := max(0, m.cursor-rows/2)
	end := min(n, start+rows)
	start = max(0, end-rows)
	return start, end
}
