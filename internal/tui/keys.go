package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the tracker key bindings.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Next    key.Binding
	Visit   key.Binding
	Skip    key.Binding
	Unvisit key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Next: key.NewBinding(
			key.WithKeys("n", "tab"),
			key.WithHelp("n", "next stop"),
		),
		Visit: key.NewBinding(
			key.WithKeys("v", "enter"),
			key.WithHelp("v", "visited"),
		),
		Skip: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "skip"),
		),
		Unvisit: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "unvisit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Visit, k.Skip, k.Next, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Next},
		{k.Visit, k.Skip, k.Unvisit},
		{k.Help, k.Quit},
	}
}
