package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap lists the timeline bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Earlier  key.Binding
	Later    key.Binding
	Collapse key.Binding
	Undo     key.Binding
	Redo     key.Binding
	Refresh  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

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
		Earlier: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "move -1 day"),
		),
		Later: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "move +1 day"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "collapse"),
		),
		Undo: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "undo"),
		),
		Redo: key.NewBinding(
			key.WithKeys("ctrl+r", "U"),
			key.WithHelp("U", "redo"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reload"),
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
	return []key.Binding{k.Up, k.Down, k.Earlier, k.Later, k.Undo, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Collapse},
		{k.Earlier, k.Later},
		{k.Undo, k.Redo, k.Refresh},
		{k.Help, k.Quit},
	}
}
