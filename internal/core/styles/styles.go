// Package styles provides shared lipgloss styles for CLI and TUI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/waypoint/internal/core/route"
)

// CurrentPalette holds the active theme palette.
var CurrentPalette Palette

// Style exports.
var (
	// CLI styles.
	CommandHeaderStyle lipgloss.Style
	DividerStyle       lipgloss.Style
	MutedStyle         lipgloss.Style
	ErrorStyle         lipgloss.Style
	WarningStyle       lipgloss.Style

	// Route styles.
	VisitedStyle   lipgloss.Style
	SkippedStyle   lipgloss.Style
	UnvisitedStyle lipgloss.Style
	NextStopStyle  lipgloss.Style

	// TUI styles.
	TitleStyle    lipgloss.Style
	SelectedStyle lipgloss.Style
	PanelStyle    lipgloss.Style
	HelpStyle     lipgloss.Style
	ProgressStyle lipgloss.Style
)

// SetTheme sets the active palette and rebuilds all global styles.
func SetTheme(p Palette) {
	CurrentPalette = p

	CommandHeaderStyle = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true)
	DividerStyle = lipgloss.NewStyle().
		Foreground(p.Muted)
	MutedStyle = lipgloss.NewStyle().
		Foreground(p.Muted)
	ErrorStyle = lipgloss.NewStyle().
		Foreground(p.Error)
	WarningStyle = lipgloss.NewStyle().
		Foreground(p.Warning)

	VisitedStyle = lipgloss.NewStyle().Foreground(p.Success)
	SkippedStyle = lipgloss.NewStyle().Foreground(p.Warning)
	UnvisitedStyle = lipgloss.NewStyle().Foreground(p.Foreground)
	NextStopStyle = lipgloss.NewStyle().
		Foreground(p.Secondary).
		Bold(true)

	TitleStyle = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true).
		MarginBottom(1)
	SelectedStyle = lipgloss.NewStyle().
		Background(p.Surface).
		Bold(true)
	PanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Muted).
		Padding(0, 1)
	HelpStyle = lipgloss.NewStyle().
		Foreground(p.Muted).
		MarginTop(1)
	ProgressStyle = lipgloss.NewStyle().
		Foreground(p.Secondary)
}

// UseTheme activates the named theme. Unknown names leave the current theme
// in place and return false.
func UseTheme(name string) bool {
	p, ok := GetPalette(name)
	if ok {
		SetTheme(p)
	}
	return ok
}

// StatusStyle returns the style for a stop status.
func StatusStyle(s route.Status) lipgloss.Style {
	switch s {
	case route.StatusVisited:
		return VisitedStyle
	case route.StatusSkipped:
		return SkippedStyle
	default:
		return UnvisitedStyle
	}
}

// StatusIcon returns the marker drawn before a stop.
func StatusIcon(s route.Status) string {
	switch s {
	case route.StatusVisited:
		return IconVisited
	case route.StatusSkipped:
		return IconSkipped
	default:
		return IconUnvisited
	}
}

// nolint:gochecknoinits // bootstrap default theme before any style is accessed.
func init() {
	SetTheme(themes[DefaultTheme])
}
