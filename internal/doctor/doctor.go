// Package doctor provides preflight checks for khmertts: that the symbol
// table is sound, that the lexicon only uses phones the table knows, and that
// the newest checkpoint was trained with the same vocabulary.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/example/go-khmer-tts/internal/checkpoint"
	"github.com/example/go-khmer-tts/internal/lexicon"
	"github.com/example/go-khmer-tts/internal/symbols"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// maxListed caps how many offending tokens a failure line names.
const maxListed = 10

// Config holds the inputs for each doctor check.
type Config struct {
	// Preset is the symbol table preset to check.
	Preset string
	// LexiconPath is loaded and checked against the table. Empty skips the check.
	LexiconPath string
	// CheckpointDir is scanned for the latest checkpoint. A missing or empty
	// directory skips the check.
	CheckpointDir string
	// Verify is passed to checkpoint.Verify.
	Verify checkpoint.VerifyOptions
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- symbol table -----------------------------------------------------
	table := checkTable(cfg.Preset, w, &res)
	if table == nil {
		// The remaining checks compare against the table.
		return res
	}

	// ---- lexicon ----------------------------------------------------------
	if cfg.LexiconPath == "" {
		fmt.Fprintf(w, "%s lexicon: skipped\n", PassMark)
	} else {
		checkLexicon(cfg.LexiconPath, table, w, &res)
	}

	// ---- checkpoint -------------------------------------------------------
	if cfg.CheckpointDir == "" {
		fmt.Fprintf(w, "%s checkpoint: skipped\n", PassMark)
	} else {
		checkCheckpoint(cfg.CheckpointDir, cfg.Verify, table, w, &res)
	}

	return res
}

func checkTable(preset string, w io.Writer, res *Result) *symbols.Table {
	p, err := symbols.ParsePreset(preset)
	if err != nil {
		res.fail(fmt.Sprintf("symbol table: %v", err))
		fmt.Fprintf(w, "%s symbol table: %v\n", FailMark, err)

		return nil
	}

	table, err := symbols.Build(p)
	if err != nil {
		res.fail(fmt.Sprintf("symbol table: %v", err))
		fmt.Fprintf(w, "%s symbol table: %v\n", FailMark, err)

		return nil
	}

	if dups := symbols.Duplicates(p); len(dups) > 0 {
		names := make([]string, len(dups))
		for i, d := range dups {
			names[i] = fmt.Sprintf("%s (%v)", d.Token, d.Classes)
		}

		res.fail(fmt.Sprintf("symbol table %s: %d duplicate tokens", p, len(dups)))
		fmt.Fprintf(w, "%s symbol table %s: duplicate tokens %s\n", FailMark, p, list(names))

		return table
	}

	fmt.Fprintf(w, "%s symbol table: %s, %d symbols, sha256 %.12s\n", PassMark, p, table.Len(), table.Fingerprint())

	return table
}

func checkLexicon(path string, table *symbols.Table, w io.Writer, res *Result) {
	lex, err := lexicon.Load(path)
	if err != nil {
		res.fail(fmt.Sprintf("lexicon %s: %v", path, err))
		fmt.Fprintf(w, "%s lexicon %s: %v\n", FailMark, path, err)

		return
	}

	if lex.Len() == 0 {
		res.fail(fmt.Sprintf("lexicon %s: no entries", path))
		fmt.Fprintf(w, "%s lexicon %s: no entries\n", FailMark, path)

		return
	}

	if missing := table.Missing(lex.Phones()); len(missing) > 0 {
		res.fail(fmt.Sprintf("lexicon %s: %d phones not in %s table", path, len(missing), table.Preset()))
		fmt.Fprintf(w, "%s lexicon %s: phones not in %s table: %s\n", FailMark, path, table.Preset(), list(missing))

		return
	}

	note := ""
	if n := lex.Skipped(); n > 0 {
		note = fmt.Sprintf(", %d malformed lines skipped", n)
	}

	fmt.Fprintf(w, "%s lexicon: %s, %d words%s\n", PassMark, path, lex.Len(), note)
}

func checkCheckpoint(dir string, opts checkpoint.VerifyOptions, table *symbols.Table, w io.Writer, res *Result) {
	step, err := checkpoint.Latest(dir)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, checkpoint.ErrNoCheckpoint) {
		fmt.Fprintf(w, "%s checkpoint: skipped (none in %s)\n", PassMark, dir)
		return
	}

	if err != nil {
		res.fail(fmt.Sprintf("checkpoint: %v", err))
		fmt.Fprintf(w, "%s checkpoint: %v\n", FailMark, err)

		return
	}

	rep, err := checkpoint.Verify(step.Model, table, opts)
	if err != nil {
		res.fail(fmt.Sprintf("checkpoint step %d: %v", step.Number, err))
		fmt.Fprintf(w, "%s checkpoint step %d: %v\n", FailMark, step.Number, err)

		return
	}

	evidence := strings.Join(rep.Checked, ", ")
	if rep.Unverified {
		evidence = "unverified"
	}

	fmt.Fprintf(w, "%s checkpoint: step %d (%s)\n", PassMark, step.Number, evidence)
}

// list joins at most maxListed items.
func list(items []string) string {
	if len(items) <= maxListed {
		return strings.Join(items, " ")
	}

	return fmt.Sprintf("%s ... (%d more)", strings.Join(items[:maxListed], " "), len(items)-maxListed)
}
