package text

import (
	"strings"
	"unicode/utf8"
)

// Sentence is one sentence of input text. End is the terminator that closed
// it, or 0 for trailing text without one.
type Sentence struct {
	Text string
	End  rune
}

// String returns the sentence with its terminator re-attached.
func (s Sentence) String() string {
	if s.End == 0 {
		return s.Text
	}

	return s.Text + string(s.End)
}

// IsTerminator reports whether r ends a sentence: the Khmer khan (។) and
// bariyoosan (៕) as well as ., ! and ?.
func IsTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '។', '៕':
		return true
	default:
		return false
	}
}

// SplitSentences splits text after every terminator. Sentences whose text is
// empty after trimming are dropped, so "។។" yields nothing.
func SplitSentences(text string) []Sentence {
	var out []Sentence

	rest := text
	for rest != "" {
		i := strings.IndexFunc(rest, IsTerminator)
		if i < 0 {
			if s := strings.TrimSpace(rest); s != "" {
				out = append(out, Sentence{Text: s})
			}

			break
		}

		end, size := utf8.DecodeRuneInString(rest[i:])
		if s := strings.TrimSpace(rest[:i]); s != "" {
			out = append(out, Sentence{Text: s, End: end})
		}

		rest = rest[i+size:]
	}

	return out
}

// Chunk packs whole sentences into chunks of at most maxRunes characters,
// joined by single spaces. Limits count runes, not bytes, since a Khmer
// character takes three bytes. A sentence longer than maxRunes becomes a
// chunk of its own; it is never cut. maxRunes <= 0 returns the trimmed text
// as one chunk.
func Chunk(text string, maxRunes int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if maxRunes <= 0 {
		return []string{text}
	}

	var (
		chunks []string
		cur    []string
		n      int
	)

	for _, sent := range SplitSentences(text) {
		s := sent.String()
		size := utf8.RuneCountInString(s)

		if len(cur) > 0 && n+1+size > maxRunes {
			chunks = append(chunks, strings.Join(cur, " "))
			cur, n = nil, 0
		}

		if len(cur) > 0 {
			n++
		}

		cur = append(cur, s)
		n += size
	}

	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}

	return chunks
}
