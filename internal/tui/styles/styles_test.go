package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestRenderProgressBar_Width(t *testing.T) {
	for _, pct := range []int{-5, 0, 37, 100, 140} {
		assert.Equal(t, 20, lipgloss.Width(RenderProgressBar(pct, 20)), "percent %d", pct)
	}
	assert.Empty(t, RenderProgressBar(50, 2))
}

func TestTruncateAndPad(t *testing.T) {
	assert.Equal(t, "Globex", Truncate("Globex", 10))
	assert.Equal(t, 6, lipgloss.Width(Truncate("Globex Corporation", 6)))
	assert.Equal(t, 10, lipgloss.Width(Pad("Acme", 10)))
}

func TestHighlightMatches_KeepsText(t *testing.T) {
	// Rendering may add ANSI codes but never drops characters
	out := HighlightMatches("Initech", []int{0, 2})
	assert.Equal(t, lipgloss.Width("Initech"), lipgloss.Width(out))
}
