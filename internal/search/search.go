// Package search ranks dashboard lists against a typed filter.
package search

import (
	"sort"
	"strings"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"
)

// Match is one ranked hit
type Match struct {
	Index          int   // Index in source slice
	MatchedIndexes []int // Character positions that matched (for highlighting)
}

// index implements sahilm/fuzzy.Source over pre-lowered labels
type index struct {
	lower []string
}

func (idx index) String(i int) string { return idx.lower[i] }
func (idx index) Len() int            { return len(idx.lower) }

// Rank filters labels by query and orders them by relevance. An empty query
// keeps every label in its original order.
func Rank(query string, labels []string) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		out := make([]Match, len(labels))
		for i := range labels {
			out[i] = Match{Index: i}
		}
		return out
	}

	idx := index{lower: make([]string, len(labels))}
	for i, l := range labels {
		idx.lower[i] = strings.ToLower(l)
	}

	found := fuzzy.FindFrom(strings.ToLower(query), idx)
	out := make([]Match, len(found))
	for i, m := range found {
		out[i] = Match{Index: m.Index, MatchedIndexes: m.MatchedIndexes}
	}
	return out
}

// Resolve picks the single label that best matches name, for commands that
// accept a document name in place of an id. It returns -1 when nothing matches.
func Resolve(name string, labels []string) int {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || len(labels) == 0 {
		return -1
	}

	type candidate struct {
		index int
		score int
	}
	var ranked []candidate
	for i, label := range labels {
		lower := strings.ToLower(label)
		switch {
		case lower == name:
			return i
		case strings.HasPrefix(lower, name):
			ranked = append(ranked, candidate{i, 10})
		case strings.Contains(lower, name):
			ranked = append(ranked, candidate{i, 50})
		}
	}

	if len(ranked) == 0 {
		for _, m := range lfuzzy.RankFindNormalizedFold(name, labels) {
			ranked = append(ranked, candidate{m.OriginalIndex, 100 + m.Distance})
		}
	}
	if len(ranked) == 0 {
		return -1
	}

	// Lower score wins; shorter labels break ties
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return len(labels[ranked[i].index]) < len(labels[ranked[j].index])
	})
	return ranked[0].index
}
