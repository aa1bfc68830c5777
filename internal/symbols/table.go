package symbols

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Table is an immutable ordered vocabulary. The zero value is not usable;
// construct tables with Build.
type Table struct {
	preset Preset
	tokens []string
	index  map[string]int
	counts []ClassCount
	digest string
}

// ClassCount records how many tokens a class contributed to a table after
// deduplication.
type ClassCount struct {
	Class Class `json:"class"`
	Count int   `json:"count"`
}

// Duplicate is a token that appears more than once in a preset's classes.
type Duplicate struct {
	Token   string  `json:"token"`
	Classes []Class `json:"classes"`
}

// Build concatenates the classes of p in order. A token that was already
// placed by an earlier class keeps its first position and later repeats are
// dropped, so the result never contains duplicates.
func Build(p Preset) (*Table, error) {
	classes, ok := presetClasses[p]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPreset, p)
	}

	t := &Table{
		preset: p,
		index:  make(map[string]int),
		counts: make([]ClassCount, 0, len(classes)),
	}

	for _, c := range classes {
		added := 0
		for _, tok := range classTokens[c] {
			if _, seen := t.index[tok]; seen {
				continue
			}
			t.index[tok] = len(t.tokens)
			t.tokens = append(t.tokens, tok)
			added++
		}
		t.counts = append(t.counts, ClassCount{Class: c, Count: added})
	}

	t.digest = fingerprint(t.tokens)

	return t, nil
}

// MustBuild is like Build but panics on an unknown preset.
func MustBuild(p Preset) *Table {
	t, err := Build(p)
	if err != nil {
		panic(err)
	}

	return t
}

// Duplicates lists tokens that occur more than once across the classes of p,
// in first-seen order. Build silently drops such repeats; a non-empty result
// means two classes disagree about who owns a token.
func Duplicates(p Preset) []Duplicate {
	seen := make(map[string]int)

	var dups []Duplicate

	owners := make(map[string][]Class)
	for _, c := range presetClasses[p] {
		for _, tok := range classTokens[c] {
			owners[tok] = append(owners[tok], c)
			seen[tok]++
			if seen[tok] == 2 {
				dups = append(dups, Duplicate{Token: tok})
			}
		}
	}

	for i := range dups {
		dups[i].Classes = owners[dups[i].Token]
	}

	return dups
}

func (t *Table) Preset() Preset { return t.preset }

// Len is the vocabulary size a model's embedding table must be built with.
func (t *Table) Len() int { return len(t.tokens) }

// Tokens returns a copy of the ordered tokens.
func (t *Table) Tokens() []string { return append([]string(nil), t.tokens...) }

// Counts returns the per-class contribution in table order.
func (t *Table) Counts() []ClassCount { return append([]ClassCount(nil), t.counts...) }

// Token returns the token at id.
func (t *Table) Token(id int) (string, bool) {
	if id < 0 || id >= len(t.tokens) {
		return "", false
	}

	return t.tokens[id], true
}

// ID returns the index of token.
func (t *Table) ID(token string) (int, bool) {
	id, ok := t.index[token]
	return id, ok
}

func (t *Table) Contains(token string) bool {
	_, ok := t.index[token]
	return ok
}

// PadID is the index of the padding token.
func (t *Table) PadID() int { return t.index[Pad] }

// Fingerprint is the hex SHA-256 of the ordered token list. Two tables share a
// fingerprint only if they have the same tokens in the same order.
func (t *Table) Fingerprint() string { return t.digest }

// Missing returns the distinct tokens absent from the table, in first-seen order.
func (t *Table) Missing(tokens []string) []string {
	var missing []string

	seen := make(map[string]struct{})
	for _, tok := range tokens {
		if t.Contains(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		missing = append(missing, tok)
	}

	return missing
}

// fingerprint length-prefixes every token so that ["ab","c"] and ["a","bc"]
// hash differently.
func fingerprint(tokens []string) string {
	h := sha256.New()

	var lenBuf [4]byte
	for _, tok := range tokens {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(tok)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write([]byte(tok))
	}

	return hex.EncodeToString(h.Sum(nil))
}
