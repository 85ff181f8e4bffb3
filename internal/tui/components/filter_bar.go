package components

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/SFZPL/lead-automation-system-sub000/internal/tui/styles"
)

// FilterBar is the single-line "/" filter shown above a list
type FilterBar struct {
	active bool
	input  textinput.Model
}

// NewFilterBar creates a new filter bar
func NewFilterBar() FilterBar {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.CharLimit = 80
	ti.Width = 40
	ti.Prompt = ""
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	return FilterBar{input: ti}
}

// Focus starts editing, seeded with the current query
func (f *FilterBar) Focus(query string) {
	f.active = true
	f.input.SetValue(query)
	f.input.CursorEnd()
	f.input.Focus()
}

// Blur stops editing
func (f *FilterBar) Blur() {
	f.active = false
	f.input.Blur()
}

// Active returns whether the bar is taking keystrokes
func (f FilterBar) Active() bool {
	return f.active
}

// SetValue replaces the query without focusing
func (f *FilterBar) SetValue(query string) {
	f.input.SetValue(query)
}

// Value returns the current query
func (f FilterBar) Value() string {
	return f.input.Value()
}

// Update handles input events, returns (bar, cmd, done). done is true when
// the user pressed enter or esc; esc also clears the query.
func (f FilterBar) Update(msg tea.Msg) (FilterBar, tea.Cmd, bool) {
	if !f.active {
		return f, nil, false
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			f.Blur()
			return f, nil, true
		case "esc":
			f.input.SetValue("")
			f.Blur()
			return f, nil, true
		}
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd, false
}

// View renders the bar. An inactive bar with a query shows the query dimmed.
func (f FilterBar) View() string {
	if f.active {
		return styles.FilterPromptStyle.Render("/ ") + f.input.View()
	}
	if q := f.input.Value(); q != "" {
		return styles.FilterPromptStyle.Render("/ ") + styles.FilterStyle.Render(q) +
			styles.DimStyle.Render("  (/ to edit, esc in filter to clear)")
	}
	return ""
}
