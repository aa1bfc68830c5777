package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ReadManifest reads JSON lines written by WriteManifest. Blank lines are
// ignored; Line is set to the 1-based line number.
func ReadManifest(r io.Reader) ([]Entry, error) {
	var entries []Entry

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)

	lineNo := 0
	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", lineNo, err)
		}

		e.Line = lineNo
		entries = append(entries, e)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return entries, nil
}

// WriteManifest writes one JSON object per entry. Khmer text is written
// as-is, not as \u escapes.
func WriteManifest(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)

	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("write manifest entry %q: %w", e.AudioPath, err)
		}
	}

	return bw.Flush()
}
