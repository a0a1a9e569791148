package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts
type KeyMap struct {
	Up           key.Binding
	Down         key.Binding
	Enter        key.Binding
	Back         key.Binding
	Scan         key.Binding
	Stop         key.Binding
	Retry        key.Binding
	SelectCamera key.Binding
	NextCamera   key.Binding
	Copy         key.Binding
	Open         key.Binding
	Clear        key.Binding
	Help         key.Binding
	Quit         key.Binding
}

// DefaultKeyMap returns the default key bindings
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
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Back: key.NewBinding(
			key.WithKeys("backspace", "esc"),
			key.WithHelp("esc/⌫", "back"),
		),
		Scan: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "scan again"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop scan"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry access"),
		),
		SelectCamera: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "select camera"),
		),
		NextCamera: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next camera"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c", "y"),
			key.WithHelp("c", "copy payload"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open URL"),
		),
		Clear: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "clear history"),
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

// ShortHelp returns a brief help string
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Scan, k.Stop, k.Copy, k.Open, k.Quit}
}

// FullHelp returns all help bindings
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Scan, k.Stop, k.Retry},
		{k.SelectCamera, k.NextCamera},
		{k.Copy, k.Open, k.Clear},
		{k.Help, k.Quit},
	}
}
