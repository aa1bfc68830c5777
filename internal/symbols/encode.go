package symbols

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSymbol is wrapped by every lookup failure for a token that is
	// not part of the table.
	ErrUnknownSymbol = errors.New("symbol not in vocabulary")
	// ErrInvalidID is returned when decoding an id outside [0, Len()).
	ErrInvalidID = errors.New("symbol id out of range")
)

// UnknownSymbolError reports the first token of an input that has no id.
type UnknownSymbolError struct {
	Token    string
	Position int
	Preset   Preset
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("symbol %q at position %d not in %s vocabulary", e.Token, e.Position, e.Preset)
}

func (e *UnknownSymbolError) Unwrap() error { return ErrUnknownSymbol }

// Encode maps tokens to ids. It stops at the first unknown token.
func (t *Table) Encode(tokens []string) ([]int, error) {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := t.index[tok]
		if !ok {
			return nil, &UnknownSymbolError{Token: tok, Position: i, Preset: t.preset}
		}
		ids[i] = id
	}

	return ids, nil
}

// EncodeLenient maps unknown tokens to the pad id instead of failing and
// returns the distinct unknown tokens alongside the ids.
func (t *Table) EncodeLenient(tokens []string) ([]int, []string) {
	ids := make([]int, len(tokens))
	pad := t.PadID()
	for i, tok := range tokens {
		id, ok := t.index[tok]
		if !ok {
			id = pad
		}
		ids[i] = id
	}

	return ids, t.Missing(tokens)
}

// Decode maps ids back to tokens.
func (t *Table) Decode(ids []int) ([]string, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		tok, ok := t.Token(id)
		if !ok {
			return nil, fmt.Errorf("%w: id %d at position %d (size %d)", ErrInvalidID, id, i, len(t.tokens))
		}
		out[i] = tok
	}

	return out, nil
}
