package text

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrUnknownMethod is returned for segmentation methods other than forward,
// reverse and bidirectional.
var ErrUnknownMethod = errors.New("unknown segmentation method")

// Method selects the longest-matching direction used by Segment.
type Method string

const (
	Forward       Method = "forward"
	Reverse       Method = "reverse"
	Bidirectional Method = "bidirectional"
)

// DefaultMethod is used when no method is configured.
const DefaultMethod = Bidirectional

// ParseMethod accepts a method name case-insensitively. The empty string
// selects DefaultMethod.
func ParseMethod(raw string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return DefaultMethod, nil
	case Forward, Reverse, Bidirectional:
		return m, nil
	case "bidi", "both":
		return Bidirectional, nil
	default:
		return "", fmt.Errorf("%w %q (expected forward, reverse, or bidirectional)", ErrUnknownMethod, raw)
	}
}

// WordSet is the dictionary Segment matches against. *lexicon.Lexicon
// implements it.
type WordSet interface {
	Contains(word string) bool
	// MaxWordLen is the longest word in runes.
	MaxWordLen() int
}

// Segment splits Khmer text written without spaces into words by longest
// matching against words. Existing whitespace is removed first. Runes that
// start no known word become single-rune segments.
//
// With an empty word set the text is returned split on its own whitespace.
func Segment(text string, words WordSet, method Method) ([]string, error) {
	m, err := ParseMethod(string(method))
	if err != nil {
		return nil, err
	}

	if words == nil || words.MaxWordLen() == 0 {
		return strings.Fields(text), nil
	}

	runes := []rune(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}

		return r
	}, text))
	if len(runes) == 0 {
		return nil, nil
	}

	maxLen := words.MaxWordLen()

	switch m {
	case Forward:
		return forwardMatch(runes, words, maxLen), nil
	case Reverse:
		return reverseMatch(runes, words, maxLen), nil
	default:
		return bidirectionalMatch(runes, words, maxLen), nil
	}
}

func forwardMatch(runes []rune, words WordSet, maxLen int) []string {
	var out []string
	for i := 0; i < len(runes); {
		n := 1
		for l := min(maxLen, len(runes)-i); l > 0; l-- {
			if words.Contains(string(runes[i : i+l])) {
				n = l
				break
			}
		}

		out = append(out, string(runes[i:i+n]))
		i += n
	}

	return out
}

func reverseMatch(runes []rune, words WordSet, maxLen int) []string {
	var out []string
	for i := len(runes); i > 0; {
		n := 1
		for l := min(maxLen, i); l > 0; l-- {
			if words.Contains(string(runes[i-l : i])) {
				n = l
				break
			}
		}

		out = append(out, string(runes[i-n:i]))
		i -= n
	}

	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}

	return out
}

// bidirectionalMatch runs both directions and keeps the one with fewer
// segments, preferring forward on a tie. Both cover the same runes, so equal
// counts also mean equal average segment length.
func bidirectionalMatch(runes []rune, words WordSet, maxLen int) []string {
	fwd := forwardMatch(runes, words, maxLen)
	rev := reverseMatch(runes, words, maxLen)

	if len(rev) < len(fwd) {
		return rev
	}

	return fwd
}
