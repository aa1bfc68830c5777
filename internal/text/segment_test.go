package text

import (
	"errors"
	"slices"
	"testing"
	"unicode/utf8"
)

type wordSet map[string]bool

func (w wordSet) Contains(word string) bool { return w[word] }

func (w wordSet) MaxWordLen() int {
	n := 0
	for word := range w {
		n = max(n, utf8.RuneCountInString(word))
	}

	return n
}

func newWordSet(words ...string) wordSet {
	ws := make(wordSet, len(words))
	for _, w := range words {
		ws[w] = true
	}

	return ws
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		input   string
		want    Method
		wantErr bool
	}{
		{"forward", Forward, false},
		{"Reverse", Reverse, false},
		{" bidirectional ", Bidirectional, false},
		{"bidi", Bidirectional, false},
		{"", DefaultMethod, false},
		{"sideways", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMethod(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownMethod) {
				t.Errorf("ParseMethod(%q) error = %v; want ErrUnknownMethod", tt.input, err)
			}

			continue
		}

		if err != nil || got != tt.want {
			t.Errorf("ParseMethod(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}
}

func TestSegment_Khmer(t *testing.T) {
	words := newWordSet("ខ្ញុំ", "ទៅ", "ពេល", "ព្រឹក", "ពេលព្រឹក", "ផ្សារ")

	for _, m := range []Method{Forward, Reverse, Bidirectional} {
		t.Run(string(m), func(t *testing.T) {
			got, err := Segment("ខ្ញុំទៅផ្សារពេលព្រឹក", words, m)
			if err != nil {
				t.Fatalf("Segment: %v", err)
			}

			want := []string{"ខ្ញុំ", "ទៅ", "ផ្សារ", "ពេលព្រឹក"}
			if !slices.Equal(got, want) {
				t.Errorf("Segment = %v; want %v", got, want)
			}
		})
	}
}

func TestSegment_Directions(t *testing.T) {
	tests := []struct {
		name   string
		words  wordSet
		text   string
		method Method
		want   []string
	}{
		{"forward greedy", newWordSet("ab", "bcd"), "abcd", Forward, []string{"ab", "c", "d"}},
		{"reverse greedy", newWordSet("ab", "bcd"), "abcd", Reverse, []string{"a", "bcd"}},
		{"bidirectional prefers fewer from reverse", newWordSet("ab", "bcd"), "abcd", Bidirectional, []string{"a", "bcd"}},
		{"bidirectional prefers fewer from forward", newWordSet("abc", "cd"), "abcd", Bidirectional, []string{"abc", "d"}},
		{"bidirectional tie keeps forward", newWordSet("ab", "bc", "c"), "abc", Bidirectional, []string{"ab", "c"}},
		{"unknown runes become single segments", newWordSet("ab"), "xaby", Forward, []string{"x", "ab", "y"}},
		{"spaces removed first", newWordSet("abcd"), "ab cd", Forward, []string{"abcd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Segment(tt.text, tt.words, tt.method)
			if err != nil {
				t.Fatalf("Segment: %v", err)
			}

			if !slices.Equal(got, tt.want) {
				t.Errorf("Segment(%q, %s) = %v; want %v", tt.text, tt.method, got, tt.want)
			}
		})
	}
}

func TestSegment_EmptyWordSet(t *testing.T) {
	got, err := Segment("ក ខ", newWordSet(), Forward)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	if !slices.Equal(got, []string{"ក", "ខ"}) {
		t.Errorf("Segment with empty word set = %v; want text unchanged", got)
	}

	got, err = Segment("ក ខ", nil, Forward)
	if err != nil || !slices.Equal(got, []string{"ក", "ខ"}) {
		t.Errorf("Segment with nil word set = %v, %v", got, err)
	}
}

func TestSegment_EmptyText(t *testing.T) {
	got, err := Segment("   ", newWordSet("ក"), Bidirectional)
	if err != nil || len(got) != 0 {
		t.Errorf("Segment(blank) = %v, %v; want empty", got, err)
	}
}

func TestSegment_UnknownMethod(t *testing.T) {
	if _, err := Segment("ក", newWordSet("ក"), "sideways"); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("Segment error = %v; want ErrUnknownMethod", err)
	}
}
