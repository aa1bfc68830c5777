package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"github.com/example/go-khmer-tts/internal/safetensors"
	"github.com/example/go-khmer-tts/internal/symbols"
)

type RemapOptions struct {
	// EmbeddingTensor defaults to DefaultEmbeddingTensor.
	EmbeddingTensor string
	// StripPrefixes are removed from tensor names before anything else.
	// The output keeps the stripped names. Without them an embedding saved
	// as "module."+EmbeddingTensor is still found and keeps its name.
	StripPrefixes []string
	// From lists the tokens the checkpoint was trained with, in row order.
	// Empty reads the vocab.json manifest beside the source.
	From []string
}

// RemapReport describes how the embedding rows moved.
type RemapReport struct {
	Source string `json:"source"`
	Output string `json:"output"`
	// Kept counts tokens present in both vocabularies.
	Kept int `json:"kept"`
	// Added tokens had no trained row and start from the mean row.
	Added []string `json:"added,omitempty"`
	// Dropped tokens are absent from the target table.
	Dropped []string `json:"dropped,omitempty"`
}

// Remap rewrites the checkpoint at src so its embedding rows follow table's
// order and writes it to dst along with a matching vocab.json. Rows are
// matched by token, so a checkpoint survives a reordered or extended symbol
// table. dst must be a .safetensors path in a different directory from src
// unless it is src itself, since one manifest describes one directory.
func Remap(src, dst string, table *symbols.Table, opts RemapOptions) (RemapReport, error) {
	rep := RemapReport{Source: src, Output: dst}

	if filepath.Ext(src) != ".safetensors" {
		return rep, fmt.Errorf("%w: %s", ErrNotSafetensors, src)
	}

	if filepath.Ext(dst) != ".safetensors" {
		return rep, fmt.Errorf("%w: %s", ErrNotSafetensors, dst)
	}

	if filepath.Clean(src) != filepath.Clean(dst) && filepath.Dir(src) == filepath.Dir(dst) {
		return rep, fmt.Errorf("remap %s: output shares its directory and %s would no longer match the source", src, symbols.ManifestFile)
	}

	if opts.EmbeddingTensor == "" {
		opts.EmbeddingTensor = DefaultEmbeddingTensor
	}

	from := opts.From
	if len(from) == 0 {
		var err error
		if from, err = trainedTokens(src); err != nil {
			return rep, err
		}
	}

	var storeOpts safetensors.StoreOptions
	if len(opts.StripPrefixes) > 0 {
		storeOpts.KeyMapper = safetensors.TrimPrefixes(opts.StripPrefixes...)
	}

	store, err := safetensors.OpenStore(src, storeOpts)
	if err != nil {
		return rep, err
	}

	name, ok := resolveEmbedding(opts.EmbeddingTensor, func(n string) bool {
		_, ok := store.Info(n)
		return ok
	})
	if !ok {
		return rep, fmt.Errorf("remap %s: %w: %q", src, safetensors.ErrTensorNotFound, opts.EmbeddingTensor)
	}

	emb, err := store.Tensor(name)
	if err != nil {
		return rep, fmt.Errorf("remap %s: %w", src, err)
	}

	emb, err = reorderRows(emb, from, table, &rep)
	if err != nil {
		return rep, fmt.Errorf("remap %s: %w", src, err)
	}

	info, _ := store.Info(name)

	raw, err := safetensors.Encode(emb, info.DType)
	if err != nil {
		return rep, fmt.Errorf("remap %s: %w", src, err)
	}

	// Everything but the embedding is copied byte for byte.
	tensors := store.RawTensors()
	for i := range tensors {
		if tensors[i].Name == name {
			tensors[i] = raw
		}
	}

	meta := store.Metadata()
	if meta == nil {
		meta = make(map[string]string, 3)
	}

	maps.Copy(meta, Metadata(table))

	return rep, commit(dst, tensors, meta, table)
}

// commit writes the checkpoint and its vocab.json. The manifest is staged
// first and only replaces the old one once the checkpoint is on disk, so a
// failed write leaves the previous pair untouched.
func commit(dst string, tensors []safetensors.RawTensor, meta map[string]string, table *symbols.Table) error {
	vocab := filepath.Join(filepath.Dir(dst), symbols.ManifestFile)
	staged := filepath.Join(filepath.Dir(dst), "."+symbols.ManifestFile+".remap")

	if err := symbols.WriteManifest(staged, symbols.NewManifest(table)); err != nil {
		return err
	}
	defer os.Remove(staged)

	if err := safetensors.WriteRawFile(dst, tensors, meta); err != nil {
		return err
	}

	if err := os.Rename(staged, vocab); err != nil {
		return fmt.Errorf("%s was rewritten but %s still describes the old rows: %w", dst, vocab, err)
	}

	return nil
}

func trainedTokens(src string) ([]string, error) {
	path := filepath.Join(filepath.Dir(src), symbols.ManifestFile)

	m, err := symbols.ReadManifest(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: remapping %s needs the %s it was trained with", ErrNoVocabEvidence, src, symbols.ManifestFile)
	}

	if err != nil {
		return nil, err
	}

	if len(m.Tokens) == 0 {
		return nil, fmt.Errorf("%w: %s lists no tokens", ErrNoVocabEvidence, path)
	}

	return m.Tokens, nil
}

// resolveEmbedding returns name, or the "module." form data-parallel
// wrappers save it under when only that exists.
func resolveEmbedding(name string, exists func(string) bool) (string, bool) {
	for _, n := range []string{name, "module." + name} {
		if exists(n) {
			return n, true
		}
	}

	return "", false
}

// reorderRows builds the embedding for table from emb, trained under from.
func reorderRows(emb safetensors.Tensor, from []string, table *symbols.Table, rep *RemapReport) (safetensors.Tensor, error) {
	rows, err := emb.Rows()
	if err != nil {
		return safetensors.Tensor{}, err
	}

	if len(rows) != len(from) {
		return safetensors.Tensor{}, fmt.Errorf("%w: %s has %d rows but the trained vocabulary lists %d tokens",
			ErrVocabMismatch, emb.Name, len(rows), len(from))
	}

	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}

	trained := make(map[string][]float32, len(from))
	for i, tok := range from {
		if _, dup := trained[tok]; dup {
			return safetensors.Tensor{}, fmt.Errorf("%w: trained vocabulary lists %q twice", ErrVocabMismatch, tok)
		}

		trained[tok] = rows[i]
	}

	mean := make([]float32, width)
	for _, row := range rows {
		for j, v := range row {
			mean[j] += v / float32(len(rows))
		}
	}

	tokens := table.Tokens()
	data := make([]float32, 0, len(tokens)*width)

	for _, tok := range tokens {
		row, ok := trained[tok]
		if ok {
			rep.Kept++
		} else {
			rep.Added = append(rep.Added, tok)
			row = mean
		}

		data = append(data, row...)
	}

	for _, tok := range from {
		if !table.Contains(tok) {
			rep.Dropped = append(rep.Dropped, tok)
		}
	}

	shape := append([]int64{int64(len(tokens))}, emb.Shape[1:]...)

	return safetensors.Tensor{Name: emb.Name, Shape: shape, Data: data}, nil
}
