// Package g2p turns Khmer text into the phone sequences the acoustic model is
// trained on. Words are looked up in the pronunciation lexicon; words the
// lexicon does not know are spelled out character by character.
package g2p

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/example/go-khmer-tts/internal/lexicon"
	"github.com/example/go-khmer-tts/internal/symbols"
	"github.com/example/go-khmer-tts/internal/text"
)

// Options controls the front-end stages run before lexicon lookup.
type Options struct {
	// Normalize expands numbers, dates, money and similar written forms.
	Normalize bool
	// Segment splits Khmer runs without spaces into lexicon words.
	Segment bool
	Method  text.Method
}

func DefaultOptions() Options {
	return Options{
		Normalize: true,
		Segment:   true,
		Method:    text.DefaultMethod,
	}
}

// Phonemizer is safe for concurrent use.
type Phonemizer struct {
	lex  *lexicon.Lexicon
	opts Options
}

// New returns a Phonemizer backed by lex. A nil lexicon is allowed: every
// word then falls back to its characters.
func New(lex *lexicon.Lexicon, opts Options) (*Phonemizer, error) {
	method, err := text.ParseMethod(string(opts.Method))
	if err != nil {
		return nil, fmt.Errorf("g2p: %w", err)
	}

	opts.Method = method

	return &Phonemizer{lex: lex, opts: opts}, nil
}

// Load reads the lexicon at path and returns a Phonemizer backed by it. An
// empty path runs without a lexicon.
func Load(path string, opts Options) (*Phonemizer, error) {
	var lex *lexicon.Lexicon

	if path != "" {
		var err error

		lex, err = lexicon.Load(path)
		if err != nil {
			return nil, err
		}

		slog.Debug("lexicon loaded", "path", path, "words", lex.Len(), "skipped", lex.Skipped())
	}

	return New(lex, opts)
}

// Lexicon returns the lexicon the Phonemizer looks words up in. It may be nil.
func (p *Phonemizer) Lexicon() *lexicon.Lexicon { return p.lex }

// Word is one unit of the output: a lexicon word, a spelled-out unknown
// word, a pause or a punctuation mark.
type Word struct {
	Text   string   `json:"text"`
	Phones []string `json:"phones"`
	// OOV is set when Text was not in the lexicon and Phones are its
	// characters.
	OOV bool `json:"oov,omitempty"`
}

// Result is the phonemized form of one input text.
type Result struct {
	// Text is the input after normalization.
	Text  string `json:"text"`
	Words []Word `json:"words"`
}

// Phones returns the flat token sequence.
func (r Result) Phones() []string {
	var out []string
	for _, w := range r.Words {
		out = append(out, w.Phones...)
	}

	return out
}

// String joins Phones with single spaces, the format used in filelists.
func (r Result) String() string {
	return strings.Join(r.Phones(), " ")
}

// OOV lists the distinct out-of-lexicon words in order of appearance.
func (r Result) OOV() []string {
	var out []string

	seen := make(map[string]bool)
	for _, w := range r.Words {
		if w.OOV && !seen[w.Text] {
			seen[w.Text] = true
			out = append(out, w.Text)
		}
	}

	return out
}

// Phonemize normalizes s, splits it into sentences and words, and looks
// every word up. Sentence terminators become punctuation tokens. It fails
// only for empty input.
func (p *Phonemizer) Phonemize(s string) (Result, error) {
	s, err := p.normalize(s)
	if err != nil {
		return Result{}, err
	}

	return p.phonemize(s), nil
}

// PhonemizeChunks normalizes s once, packs its sentences into chunks of at
// most maxRunes characters with text.Chunk and phonemizes each chunk. The
// limit applies to the normalized text, so expanded numbers count at their
// spoken length.
func (p *Phonemizer) PhonemizeChunks(s string, maxRunes int) ([]Result, error) {
	s, err := p.normalize(s)
	if err != nil {
		return nil, err
	}

	chunks := text.Chunk(s, maxRunes)
	out := make([]Result, 0, len(chunks))

	for _, c := range chunks {
		out = append(out, p.phonemize(c))
	}

	return out, nil
}

func (p *Phonemizer) normalize(s string) (string, error) {
	s, err := text.Normalize(s)
	if err != nil {
		return "", err
	}

	if p.opts.Normalize {
		s = text.NormalizeKhmer(s, text.DefaultOptions())
	}

	return s, nil
}

func (p *Phonemizer) phonemize(s string) Result {
	res := Result{Text: s}

	for _, sent := range text.SplitSentences(s) {
		for _, field := range strings.Fields(sent.Text) {
			res.Words = append(res.Words, p.field(field)...)
		}

		if tok := terminator(sent.End); tok != "" {
			res.Words = append(res.Words, Word{Text: string(sent.End), Phones: []string{tok}})
		}
	}

	return res
}

// field handles one whitespace-separated token.
func (p *Phonemizer) field(f string) []Word {
	if f == text.SilenceToken {
		return []Word{{Text: f, Phones: []string{symbols.Silence}}}
	}

	if letter, ok := strings.CutSuffix(f, "_letter-en"); ok && len(letter) == 1 {
		return []Word{{Text: f, Phones: []string{strings.ToUpper(letter)}}}
	}

	lead, core, trail := splitEdgePunct(f)

	var words []Word
	for _, r := range lead {
		words = append(words, punct(r))
	}

	if core != "" {
		for _, w := range p.segment(core) {
			words = append(words, p.lookup(w))
		}
	}

	for _, r := range trail {
		words = append(words, punct(r))
	}

	return words
}

func (p *Phonemizer) segment(s string) []string {
	if !p.opts.Segment || p.lex.Len() == 0 || !hasKhmer(s) {
		return []string{s}
	}

	// Method was validated in New.
	words, err := text.Segment(s, p.lex, p.opts.Method)
	if err != nil || len(words) == 0 {
		return []string{s}
	}

	return words
}

func (p *Phonemizer) lookup(w string) Word {
	if ph, ok := p.lex.Lookup(w); ok {
		return Word{Text: w, Phones: ph}
	}

	chars := make([]string, 0, len(w))
	for _, r := range w {
		chars = append(chars, string(r))
	}

	return Word{Text: w, Phones: chars, OOV: true}
}

// terminator maps a sentence-ending rune to its punctuation token.
func terminator(r rune) string {
	switch r {
	case '។', '៕', '.':
		return "."
	case '?':
		return "?"
	case '!':
		return "!"
	default:
		return ""
	}
}

const edgePunct = `,;:'"!?.()`

// splitEdgePunct peels punctuation off both ends of a field.
func splitEdgePunct(f string) (lead, core, trail string) {
	core = strings.TrimLeft(f, edgePunct)
	lead = f[:len(f)-len(core)]

	trimmed := strings.TrimRight(core, edgePunct)
	trail = core[len(trimmed):]

	return lead, trimmed, trail
}

// punct keeps table punctuation and drops quotes and brackets to nothing.
func punct(r rune) Word {
	switch r {
	case '"', '(', ')':
		return Word{Text: string(r)}
	default:
		return Word{Text: string(r), Phones: []string{string(r)}}
	}
}

func hasKhmer(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Khmer, r) {
			return true
		}
	}

	return false
}
