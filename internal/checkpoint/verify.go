package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/example/go-khmer-tts/internal/safetensors"
	"github.com/example/go-khmer-tts/internal/symbols"
)

// Metadata keys written by Stamp.
const (
	MetaPreset      = "vocab.preset"
	MetaSize        = "vocab.size"
	MetaFingerprint = "vocab.sha256"
)

// DefaultEmbeddingTensor is the text embedding whose row count equals the
// vocabulary size.
const DefaultEmbeddingTensor = "encoder.emb.weight"

var (
	// ErrVocabMismatch is symbols.ErrVocabMismatch, re-exported for callers
	// that only deal with checkpoints.
	ErrVocabMismatch = symbols.ErrVocabMismatch

	// ErrNoVocabEvidence is returned when nothing about a checkpoint records
	// the vocabulary it was trained with.
	ErrNoVocabEvidence = errors.New("checkpoint carries no vocabulary evidence")

	ErrNotSafetensors = errors.New("checkpoint is not a safetensors file")
)

type VerifyOptions struct {
	// EmbeddingTensor defaults to DefaultEmbeddingTensor.
	EmbeddingTensor string
	// AllowUnverified accepts checkpoints without any vocabulary evidence.
	AllowUnverified bool
}

// Report lists the evidence Verify checked.
type Report struct {
	Path    string   `json:"path"`
	Checked []string `json:"checked"`
	// Unverified is set when no evidence existed and AllowUnverified
	// accepted the checkpoint anyway.
	Unverified bool `json:"unverified,omitempty"`
}

// Verify checks the checkpoint at path against table. Three sources are
// consulted in turn: the vocab.json manifest beside the checkpoint, the
// vocab.* safetensors metadata, and the row count of the embedding tensor.
// The first disagreement is returned as an error wrapping ErrVocabMismatch.
func Verify(path string, table *symbols.Table, opts VerifyOptions) (Report, error) {
	if opts.EmbeddingTensor == "" {
		opts.EmbeddingTensor = DefaultEmbeddingTensor
	}

	rep := Report{Path: path}

	manifestPath := filepath.Join(filepath.Dir(path), symbols.ManifestFile)

	m, err := symbols.ReadManifest(manifestPath)
	switch {
	case err == nil:
		if err := m.Verify(table); err != nil {
			return rep, fmt.Errorf("%s: %w", manifestPath, err)
		}

		rep.Checked = append(rep.Checked, symbols.ManifestFile)
	case !errors.Is(err, fs.ErrNotExist):
		return rep, err
	}

	if filepath.Ext(path) == ".safetensors" {
		h, err := safetensors.ReadHeader(path)
		if err != nil {
			return rep, err
		}

		checked, err := verifyMetadata(h.Metadata, table)
		if err != nil {
			return rep, fmt.Errorf("%s metadata: %w", path, err)
		}

		if checked {
			rep.Checked = append(rep.Checked, "metadata")
		}

		checked, err = verifyEmbedding(h, opts.EmbeddingTensor, table)
		if err != nil {
			return rep, fmt.Errorf("%s: %w", path, err)
		}

		if checked {
			rep.Checked = append(rep.Checked, opts.EmbeddingTensor)
		}
	}

	if len(rep.Checked) == 0 {
		if opts.AllowUnverified {
			rep.Unverified = true
			return rep, nil
		}

		return rep, fmt.Errorf("%w: %s (stamp it or write %s beside it)", ErrNoVocabEvidence, path, symbols.ManifestFile)
	}

	return rep, nil
}

func verifyMetadata(meta map[string]string, table *symbols.Table) (bool, error) {
	checked := false

	if raw, ok := meta[MetaSize]; ok {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return false, fmt.Errorf("%w: %s is %q, not a number", ErrVocabMismatch, MetaSize, raw)
		}

		if size != table.Len() {
			return false, fmt.Errorf("%w: trained with %d symbols, active %s table has %d", ErrVocabMismatch, size, table.Preset(), table.Len())
		}

		checked = true
	}

	if fp, ok := meta[MetaFingerprint]; ok {
		if fp != table.Fingerprint() {
			return false, fmt.Errorf("%w: trained with %s table %.12s, active %s table %.12s",
				ErrVocabMismatch, meta[MetaPreset], fp, table.Preset(), table.Fingerprint())
		}

		checked = true
	}

	return checked, nil
}

func verifyEmbedding(h safetensors.Header, name string, table *symbols.Table) (bool, error) {
	found, ok := resolveEmbedding(name, func(n string) bool {
		_, ok := h.Tensor(n)
		return ok
	})
	if !ok {
		return false, nil
	}

	info, _ := h.Tensor(found)
	if len(info.Shape) == 0 {
		return false, nil
	}

	if rows := info.Shape[0]; rows != int64(table.Len()) {
		return false, fmt.Errorf("%w: embedding %s has %d rows, active %s table has %d",
			ErrVocabMismatch, info.Name, rows, table.Preset(), table.Len())
	}

	return true, nil
}

// Metadata returns the vocab.* metadata describing table.
func Metadata(table *symbols.Table) map[string]string {
	return map[string]string{
		MetaPreset:      string(table.Preset()),
		MetaSize:        strconv.Itoa(table.Len()),
		MetaFingerprint: table.Fingerprint(),
	}
}

// Stamp records table in the metadata of the safetensors checkpoint at path.
// Other metadata and all tensors are kept.
func Stamp(path string, table *symbols.Table) error {
	if filepath.Ext(path) != ".safetensors" {
		return fmt.Errorf("%w: %s", ErrNotSafetensors, path)
	}

	return safetensors.UpdateMetadata(path, Metadata(table))
}

// WriteVocab writes the vocab.json manifest for table into dir and returns
// its path.
func WriteVocab(dir string, table *symbols.Table) (string, error) {
	path := filepath.Join(dir, symbols.ManifestFile)
	if err := symbols.WriteManifest(path, symbols.NewManifest(table)); err != nil {
		return "", err
	}

	return path, nil
}
