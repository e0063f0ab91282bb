package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines key bindings used across the TUI.
type KeyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Quit     key.Binding
	Refresh  key.Binding

	// Signal explorer filters
	FilterClass      key.Binding
	FilterConfidence key.Binding
	ScrollDown       key.Binding
	ScrollUp         key.Binding
}

// DefaultKeyMap provides the default key bindings for the TUI.
var DefaultKeyMap = KeyMap{
	Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
	ShiftTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Refresh:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh")),

	FilterClass:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cycle signal")),
	FilterConfidence: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "cycle min confidence")),
	ScrollDown:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
	ScrollUp:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
}
