// Package lexicon loads the Khmer pronunciation lexicon: a tab-separated file
// mapping an orthographic word to its space-separated phone sequence.
//
//	ខ្ញុំ	kʰ ɲ ɔ m
//
// Lines starting with '#', blank lines and lines without a phone column are
// ignored. A word listed twice keeps its last pronunciation.
package lexicon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrEmptyPath is returned when Load is called with an empty path.
var ErrEmptyPath = errors.New("lexicon path must not be empty")

// Lexicon is a read-only word → phones map. The zero value is an empty
// lexicon.
type Lexicon struct {
	entries map[string][]string
	maxLen  int
	skipped int
}

// Load reads a lexicon file. A missing file yields an error wrapping
// fs.ErrNotExist so callers can choose to continue without one.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lexicon: %w", err)
	}
	defer f.Close()

	lex, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}

	return lex, nil
}

// Parse reads lexicon lines from r.
func Parse(r io.Reader) (*Lexicon, error) {
	lex := &Lexicon{entries: make(map[string][]string)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		word, pron, ok := strings.Cut(line, "\t")
		word = strings.TrimSpace(word)
		phones := strings.Fields(pron)
		if !ok || word == "" || len(phones) == 0 {
			lex.skipped++
			continue
		}

		lex.entries[word] = phones
		if n := utf8.RuneCountInString(word); n > lex.maxLen {
			lex.maxLen = n
		}
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	return lex, nil
}

// New builds a lexicon from an in-memory map. The phone slices are copied.
func New(entries map[string][]string) *Lexicon {
	lex := &Lexicon{entries: make(map[string][]string, len(entries))}
	for w, ph := range entries {
		if w == "" || len(ph) == 0 {
			continue
		}
		lex.entries[w] = append([]string(nil), ph...)
		if n := utf8.RuneCountInString(w); n > lex.maxLen {
			lex.maxLen = n
		}
	}

	return lex
}

// Lookup returns a copy of the phones for word.
func (l *Lexicon) Lookup(word string) ([]string, bool) {
	if l == nil {
		return nil, false
	}

	ph, ok := l.entries[word]
	if !ok {
		return nil, false
	}

	return append([]string(nil), ph...), true
}

// Contains reports whether word has an entry. It satisfies text.WordSet.
func (l *Lexicon) Contains(word string) bool {
	if l == nil {
		return false
	}

	_, ok := l.entries[word]
	return ok
}

func (l *Lexicon) Len() int {
	if l == nil {
		return 0
	}

	return len(l.entries)
}

// MaxWordLen is the longest entry in runes.
func (l *Lexicon) MaxWordLen() int {
	if l == nil {
		return 0
	}

	return l.maxLen
}

// Skipped counts malformed lines dropped while parsing.
func (l *Lexicon) Skipped() int {
	if l == nil {
		return 0
	}

	return l.skipped
}

// Words returns every entry word, sorted.
func (l *Lexicon) Words() []string {
	if l == nil {
		return nil
	}

	words := make([]string, 0, len(l.entries))
	for w := range l.entries {
		words = append(words, w)
	}
	sort.Strings(words)

	return words
}

// Phones returns the distinct phones used by any entry, sorted.
func (l *Lexicon) Phones() []string {
	if l == nil {
		return nil
	}

	set := make(map[string]struct{})
	for _, ph := range l.entries {
		for _, p := range ph {
			set[p] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)

	return out
}
