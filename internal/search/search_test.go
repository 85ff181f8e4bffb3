package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank_EmptyQueryKeepsOrder(t *testing.T) {
	got := Rank("  ", []string{"b", "a"})
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 1, got[1].Index)
}

func TestRank_FiltersAndHighlights(t *testing.T) {
	labels := []string{"Globex Corporation", "Acme Holdings", "Acme Logistics"}
	got := Rank("acme log", labels)
	require.NotEmpty(t, got)
	assert.Equal(t, 2, got[0].Index)
	assert.NotEmpty(t, got[0].MatchedIndexes)

	for _, m := range got {
		assert.NotEqual(t, 0, m.Index)
	}
}

func TestResolve(t *testing.T) {
	labels := []string{"Pricing 2024.pdf", "Pricing.pdf", "Company Deck.pdf"}

	assert.Equal(t, 1, Resolve("pricing.pdf", labels))
	assert.Equal(t, 1, Resolve("Pricing", labels))
	assert.Equal(t, 2, Resolve("deck", labels))
	assert.Equal(t, 2, Resolve("cmpny dck", labels))
	assert.Equal(t, -1, Resolve("invoice", labels))
	assert.Equal(t, -1, Resolve("", labels))
}
