package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Top       key.Binding
	Bottom    key.Binding
	Next      key.Binding
	Prev      key.Binding
	Star      key.Binding
	Summarize key.Binding
	Clear     key.Binding
	Export    key.Binding
	Preview   key.Binding
	Picker    key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll")),
		PageUp:    key.NewBinding(key.WithKeys("pgup", "b"), key.WithHelp("pgup", "page up")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown", "f", " "), key.WithHelp("pgdn", "page down")),
		Top:       key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:    key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Next:      key.NewBinding(key.WithKeys("n", "J"), key.WithHelp("n", "next message")),
		Prev:      key.NewBinding(key.WithKeys("p", "K"), key.WithHelp("p", "previous message")),
		Star:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "star")),
		Summarize: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "AI labels")),
		Clear:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear labels")),
		Export:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		Preview:   key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "preview export")),
		Picker:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Star, k.Summarize, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.Next, k.Prev, k.Star},
		{k.Summarize, k.Clear, k.Export, k.Preview},
		{k.Picker, k.Help, k.Quit},
	}
}
