package lexicon

import (
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestLoad_Fixture(t *testing.T) {
	lex, err := Load("testdata/khmer.tsv")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if lex.Len() != 42 {
		t.Errorf("Len() = %d; want 42", lex.Len())
	}

	if lex.Skipped() != 2 {
		t.Errorf("Skipped() = %d; want 2", lex.Skipped())
	}

	got, ok := lex.Lookup("ខ្ញុំ")
	if !ok {
		t.Fatal("Lookup(ខ្ញុំ) not found")
	}

	if !slices.Equal(got, []string{"k", "ɲ", "ɔ", "m"}) {
		t.Errorf("Lookup(ខ្ញុំ) = %v", got)
	}

	// ពេលព្រឹក is 8 runes, the longest entry.
	if lex.MaxWordLen() != 8 {
		t.Errorf("MaxWordLen() = %d; want 8", lex.MaxWordLen())
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("Load(\"\") error = %v; want ErrEmptyPath", err)
	}

	_, err := Load(filepath.Join(t.TempDir(), "none.tsv"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load(missing) error = %v; want fs.ErrNotExist", err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		word    string
		want    []string
		wantLen int
	}{
		{
			name:    "single entry",
			input:   "បី\tɓ ei\n",
			word:    "បី",
			want:    []string{"ɓ", "ei"},
			wantLen: 1,
		},
		{
			name:    "comments and blanks ignored",
			input:   "# header\n\nបី\tɓ ei\n   \n",
			word:    "បី",
			want:    []string{"ɓ", "ei"},
			wantLen: 1,
		},
		{
			name:    "last duplicate wins",
			input:   "បី\tb i\nបី\tɓ ei\n",
			word:    "បី",
			want:    []string{"ɓ", "ei"},
			wantLen: 1,
		},
		{
			name:    "extra whitespace in phones collapsed",
			input:   "ដក\t  ɗ   ɑ k  \n",
			word:    "ដក",
			want:    []string{"ɗ", "ɑ", "k"},
			wantLen: 1,
		},
		{
			name:    "missing phone column skipped",
			input:   "ដក\n",
			word:    "ដក",
			want:    nil,
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lex, err := Parse(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}

			if lex.Len() != tt.wantLen {
				t.Fatalf("Len() = %d; want %d", lex.Len(), tt.wantLen)
			}

			got, _ := lex.Lookup(tt.word)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Lookup(%q) = %v; want %v", tt.word, got, tt.want)
			}
		})
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	lex := New(map[string][]string{"បី": {"ɓ", "ei"}})

	got, _ := lex.Lookup("បី")
	got[0] = "x"

	again, _ := lex.Lookup("បី")
	if again[0] != "ɓ" {
		t.Fatal("Lookup must not expose internal slices")
	}
}

func TestNilLexicon(t *testing.T) {
	var lex *Lexicon

	if lex.Contains("x") || lex.Len() != 0 || lex.MaxWordLen() != 0 {
		t.Fatal("nil lexicon should behave as empty")
	}

	if _, ok := lex.Lookup("x"); ok {
		t.Fatal("nil lexicon Lookup should miss")
	}
}

func TestWordsAndPhones_Sorted(t *testing.T) {
	lex := New(map[string][]string{
		"ខ": {"kʰ", "ɑ"},
		"ក": {"k", "ɑ"},
		"":  {"ignored"},
	})

	if !slices.Equal(lex.Words(), []string{"ក", "ខ"}) {
		t.Errorf("Words() = %v", lex.Words())
	}

	if !slices.Equal(lex.Phones(), []string{"k", "kʰ", "ɑ"}) {
		t.Errorf("Phones() = %v", lex.Phones())
	}
}
