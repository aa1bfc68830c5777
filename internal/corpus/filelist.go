// Package corpus reads training filelists, phonemizes them in bulk and
// reports which phones a corpus needs from a symbol table.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// Entry is one utterance of a corpus. Phone, IDs and AudioMS are filled in
// by Phonemize.
type Entry struct {
	Line      int    `json:"-"`
	AudioPath string `json:"audio_path"`
	Text      string `json:"text"`
	Phone     string `json:"phone,omitempty"`
	IDs       []int  `json:"ids,omitempty"`
	AudioMS   int64  `json:"audio_ms,omitempty"`
}

// Phones splits Phone into tokens.
func (e Entry) Phones() []string {
	return strings.Fields(e.Phone)
}

// ReadFilelist parses "audio_path|text" lines. The text is everything after
// the first '|'. Blank lines and lines without both fields are skipped and
// counted.
func ReadFilelist(r io.Reader) ([]Entry, int, error) {
	var (
		entries []Entry
		skipped int
		lineNo  int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		path, text, ok := strings.Cut(line, "|")
		path = strings.TrimSpace(path)
		text = strings.TrimSpace(text)

		if !ok || path == "" || text == "" {
			slog.Debug("skipping malformed filelist line", "line", lineNo)
			skipped++

			continue
		}

		entries = append(entries, Entry{Line: lineNo, AudioPath: path, Text: text})
	}

	if err := sc.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read filelist: %w", err)
	}

	return entries, skipped, nil
}

// WriteFilelist writes entries back as "audio_path|text" lines.
func WriteFilelist(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%s|%s\n", e.AudioPath, e.Text); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// IndexEntry is one row of a recording index.
type IndexEntry struct {
	Line int
	File string
	Text string
}

// ReadIndex parses a recording index with "filename<TAB>text" rows. Rows
// without a tab fall back to splitting on the first run of whitespace. Lines
// starting with '#' are comments. File names get a ".wav" suffix when they
// have none. Rows without text are skipped and counted.
func ReadIndex(r io.Reader) ([]IndexEntry, int, error) {
	var (
		entries []IndexEntry
		skipped int
		lineNo  int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		file, text, ok := strings.Cut(line, "\t")
		if !ok {
			file, text, ok = cutSpace(line)
		}

		text = strings.TrimSpace(text)
		if !ok || text == "" {
			slog.Debug("skipping index line without text", "line", lineNo)
			skipped++

			continue
		}

		file = strings.TrimSpace(file)
		if !strings.EqualFold(filepath.Ext(file), ".wav") {
			file += ".wav"
		}

		entries = append(entries, IndexEntry{Line: lineNo, File: file, Text: text})
	}

	if err := sc.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read index: %w", err)
	}

	return entries, skipped, nil
}

// Filelist turns index rows into corpus entries with audio paths under dir.
func Filelist(index []IndexEntry, dir string) []Entry {
	entries := make([]Entry, 0, len(index))
	for _, ie := range index {
		entries = append(entries, Entry{
			Line:      ie.Line,
			AudioPath: filepath.Join(dir, ie.File),
			Text:      ie.Text,
		})
	}

	return entries
}

func cutSpace(s string) (before, after string, found bool) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, "", false
	}

	return s[:i], s[i+1:], true
}
