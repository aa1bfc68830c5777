package symbols

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ManifestFile is the sidecar name written next to checkpoints.
const ManifestFile = "vocab.json"

// ErrVocabMismatch is returned when a persisted vocabulary differs from the
// active table in size, order or content.
var ErrVocabMismatch = errors.New("vocabulary mismatch")

// Manifest is the persisted form of a table. Tokens are stored literally so a
// checkpoint can be remapped even after the preset definitions change.
type Manifest struct {
	Preset      Preset       `json:"preset"`
	Size        int          `json:"size"`
	Fingerprint string       `json:"sha256"`
	Classes     []ClassCount `json:"classes,omitempty"`
	Tokens      []string     `json:"tokens"`
}

func NewManifest(t *Table) Manifest {
	return Manifest{
		Preset:      t.preset,
		Size:        t.Len(),
		Fingerprint: t.digest,
		Classes:     t.Counts(),
		Tokens:      t.Tokens(),
	}
}

// Verify reports the first difference between m and t. The size is checked
// first since that is what breaks embedding shapes; an order change with the
// same size is the silent case this check exists for.
func (m Manifest) Verify(t *Table) error {
	if m.Size != t.Len() {
		return fmt.Errorf("%w: persisted size %d, active %s table has %d", ErrVocabMismatch, m.Size, t.preset, t.Len())
	}

	if len(m.Tokens) > 0 {
		if len(m.Tokens) != m.Size {
			return fmt.Errorf("%w: manifest lists %d tokens but declares size %d", ErrVocabMismatch, len(m.Tokens), m.Size)
		}
		for i, tok := range m.Tokens {
			if tok != t.tokens[i] {
				return fmt.Errorf("%w: position %d is %q in checkpoint, %q in active table", ErrVocabMismatch, i, tok, t.tokens[i])
			}
		}
	}

	if m.Fingerprint != "" && m.Fingerprint != t.digest {
		return fmt.Errorf("%w: fingerprint %s, active %s", ErrVocabMismatch, shortHash(m.Fingerprint), shortHash(t.digest))
	}

	return nil
}

// WriteManifest writes m as indented JSON.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vocabulary manifest: %w", err)
	}

	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write vocabulary manifest %s: %w", path, err)
	}

	return nil
}

func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read vocabulary manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode vocabulary manifest %s: %w", path, err)
	}

	return m, nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}

	return h
}
