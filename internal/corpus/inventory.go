package corpus

import (
	"cmp"
	"maps"
	"slices"

	"github.com/example/go-khmer-tts/internal/symbols"
)

// TokenCount is a phone and the number of times it occurs.
type TokenCount struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// Inventory is a phone frequency histogram.
type Inventory struct {
	counts     map[string]int
	utterances int
}

// NewInventory counts the phones of every entry.
func NewInventory(entries []Entry) *Inventory {
	inv := &Inventory{counts: make(map[string]int)}
	for _, e := range entries {
		inv.Add(e.Phones())
	}

	return inv
}

// Add counts one utterance.
func (inv *Inventory) Add(phones []string) {
	inv.utterances++
	for _, p := range phones {
		inv.counts[p]++
	}
}

// Utterances is the number of Add calls.
func (inv *Inventory) Utterances() int { return inv.utterances }

// Len is the number of distinct phones.
func (inv *Inventory) Len() int { return len(inv.counts) }

// Count returns how often token occurred.
func (inv *Inventory) Count(token string) int { return inv.counts[token] }

// Tokens returns all phones by descending count, ties broken by token.
func (inv *Inventory) Tokens() []TokenCount {
	out := make([]TokenCount, 0, len(inv.counts))
	for _, tok := range slices.Sorted(maps.Keys(inv.counts)) {
		out = append(out, TokenCount{Token: tok, Count: inv.counts[tok]})
	}

	slices.SortStableFunc(out, func(a, b TokenCount) int {
		return cmp.Compare(b.Count, a.Count)
	})

	return out
}

// Coverage compares the inventory against a symbol table. Total and Covered
// count distinct phones.
type Coverage struct {
	Total   int          `json:"total"`
	Covered int          `json:"covered"`
	Missing []TokenCount `json:"missing"`
}

// Complete reports whether every phone is in the table.
func (c Coverage) Complete() bool { return len(c.Missing) == 0 }

// Coverage reports which phones table lacks, most frequent first.
func (inv *Inventory) Coverage(table *symbols.Table) Coverage {
	c := Coverage{Total: inv.Len()}
	for _, tc := range inv.Tokens() {
		if table.Contains(tc.Token) {
			c.Covered++
			continue
		}

		c.Missing = append(c.Missing, tc)
	}

	return c
}
