package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the dashboard
type KeyMap struct {
	// Navigation
	Up      key.Binding
	Down    key.Binding
	NextTab key.Binding
	PrevTab key.Binding

	// Operations
	StartExtract  key.Binding
	StartEnrich   key.Binding
	StartPipeline key.Binding
	Cancel        key.Binding

	// Actions
	Refresh  key.Binding
	Filter   key.Binding
	DaysBack key.Binding
	Connect  key.Binding
	Confirm  key.Binding
	Escape   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-tab", "previous tab"),
		),

		StartExtract: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "extract leads"),
		),
		StartEnrich: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "enrich leads"),
		),
		StartPipeline: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "full pipeline"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop tracking"),
		),

		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		DaysBack: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "follow-up window"),
		),
		Connect: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "connect outlook"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "done in browser"),
			key.WithDisabled(),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "dismiss"),
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

// SetOperationsEnabled toggles the start bindings. Disabled bindings stop
// matching and drop out of the help line.
func (k *KeyMap) SetOperationsEnabled(enabled bool) {
	k.StartExtract.SetEnabled(enabled)
	k.StartEnrich.SetEnabled(enabled)
	k.StartPipeline.SetEnabled(enabled)
	k.Cancel.SetEnabled(!enabled)
}

// Keys is the global key bindings instance
var Keys = DefaultKeyMap()
