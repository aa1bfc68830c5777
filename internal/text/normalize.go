package text

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

// zeroWidth covers the invisible separators Khmer typists use between words.
var zeroWidth = strings.NewReplacer(
	"\u200b", " ", // zero width space
	"\u200c", "",  // zero width non-joiner
	"\u200d", "",  // zero width joiner
	"\ufeff", "",  // byte order mark
)

// Normalize prepares raw input text for the front-end.
// It composes the text to NFC, turns zero-width spaces into plain spaces,
// normalizes line endings to \n, trims surrounding whitespace and rejects
// empty or whitespace-only input.
func Normalize(s string) (string, error) {
	s = norm.NFC.String(s)
	s = zeroWidth.Replace(s)

	// Normalize line endings: CRLF → LF, then bare CR → LF.
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = strings.TrimSpace(s)

	if s == "" {
		return "", ErrEmptyText
	}

	return s, nil
}

// CollapseSpace replaces every run of whitespace with a single space and trims
// the result.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
