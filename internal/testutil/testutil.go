// Package testutil provides shared fixtures for khmertts tests.
//
// Helpers that need files from the repository call t.Skip with a clear
// reason when the file is absent, so tests stay runnable from a partial
// checkout.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    lex := testutil.LexiconPath(t)
//	    dir := t.TempDir()
//	    testutil.WriteCheckpointStep(t, dir, 100, 168)
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/example/go-khmer-tts/internal/checkpoint"
	"github.com/example/go-khmer-tts/internal/safetensors"
)

// RepoRoot walks up from the working directory to the directory holding
// go.mod. The test is skipped when there is none.
func RepoRoot(tb testing.TB) string {
	tb.Helper()

	dir, err := os.Getwd()
	if err != nil {
		tb.Skipf("working directory unavailable: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			tb.Skip("go.mod not found above the working directory")
		}

		dir = parent
	}
}

// LexiconPath returns the shipped Khmer lexicon, skipping the test if it is
// missing.
func LexiconPath(tb testing.TB) string {
	tb.Helper()

	path := filepath.Join(RepoRoot(tb), "lexicons", "khmer.tsv")
	if _, err := os.Stat(path); err != nil {
		tb.Skipf("lexicon not available at %q: %v", path, err)
	}

	return path
}

// WriteFile writes content to path or fails the test.
func WriteFile(tb testing.TB, path, content string) {
	tb.Helper()

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("WriteFile: %v", err)
	}
}

// WriteCheckpointStep writes a complete checkpoint step into dir: a
// safetensors model whose embedding tensor has rows rows, and an optimizer
// file. It returns the model path.
func WriteCheckpointStep(tb testing.TB, dir string, step, rows int) string {
	tb.Helper()

	model := filepath.Join(dir, "checkpoint_step_"+strconv.Itoa(step)+".safetensors")

	err := safetensors.WriteFile(model, []safetensors.Tensor{
		{Name: checkpoint.DefaultEmbeddingTensor, Shape: []int64{int64(rows), 1}, Data: make([]float32, rows)},
	}, nil)
	if err != nil {
		tb.Fatalf("write checkpoint: %v", err)
	}

	WriteFile(tb, filepath.Join(dir, "optimizer_step_"+strconv.Itoa(step)+".pt"), "opt")

	return model
}
