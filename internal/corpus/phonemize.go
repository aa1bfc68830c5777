package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/example/go-khmer-tts/internal/audio"
	"github.com/example/go-khmer-tts/internal/g2p"
	"github.com/example/go-khmer-tts/internal/symbols"
	"github.com/sourcegraph/conc/iter"
)

// DefaultWorkers bounds Phonemize when Options.Workers is not positive.
const DefaultWorkers = 4

// ErrStrict is wrapped by the error Phonemize returns when a strict run
// hits a failing entry.
var ErrStrict = errors.New("corpus entry failed in strict mode")

// Phonemizer converts an utterance to phones. *g2p.Phonemizer implements it.
type Phonemizer interface {
	Phonemize(text string) (g2p.Result, error)
}

// Options configures Phonemize.
type Options struct {
	Workers int
	// Strict aborts the run on the first failing entry instead of skipping it.
	Strict bool
	// ProbeAudio decodes each entry's WAV and records AudioMS.
	ProbeAudio bool
	// AudioDir resolves relative audio paths when ProbeAudio is set.
	AudioDir string
	// SampleRate rejects audio at any other rate. Zero accepts all.
	SampleRate int
}

// Failure is an entry Phonemize could not convert.
type Failure struct {
	Line      int
	AudioPath string
	Err       error
}

func (f Failure) Error() string {
	return fmt.Sprintf("line %d (%s): %v", f.Line, f.AudioPath, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Report is the outcome of Phonemize. Entries and Failures keep input order.
type Report struct {
	Entries  []Entry
	Failures []Failure
}

// Phonemize converts every entry with p and, when table is non-nil, encodes
// the phones to ids. Entries with tokens missing from table become Failures
// wrapping symbols.ErrUnknownSymbol. Work is spread over Options.Workers
// goroutines.
func Phonemize(ctx context.Context, entries []Entry, p Phonemizer, table *symbols.Table, opts Options) (Report, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	parent := ctx

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	type outcome struct {
		entry Entry
		err   error
	}

	mapper := iter.Mapper[Entry, outcome]{MaxGoroutines: workers}
	outcomes := mapper.Map(entries, func(e *Entry) outcome {
		if err := ctx.Err(); err != nil {
			return outcome{entry: *e, err: err}
		}

		out, err := convert(*e, p, table, opts)
		if err != nil && opts.Strict {
			cancel()
		}

		return outcome{entry: out, err: err}
	})

	var rep Report

	for _, o := range outcomes {
		if o.err == nil {
			rep.Entries = append(rep.Entries, o.entry)
			continue
		}

		if errors.Is(o.err, context.Canceled) || errors.Is(o.err, context.DeadlineExceeded) {
			continue
		}

		f := Failure{Line: o.entry.Line, AudioPath: o.entry.AudioPath, Err: o.err}
		slog.Debug("corpus entry failed", "line", f.Line, "audio_path", f.AudioPath, "error", f.Err)
		rep.Failures = append(rep.Failures, f)
	}

	if err := parent.Err(); err != nil {
		return rep, fmt.Errorf("phonemize corpus: %w", err)
	}

	if opts.Strict && len(rep.Failures) > 0 {
		return rep, fmt.Errorf("%w: %w", ErrStrict, rep.Failures[0])
	}

	slog.Debug("corpus phonemized", "entries", len(rep.Entries), "failures", len(rep.Failures))

	return rep, nil
}

func convert(e Entry, p Phonemizer, table *symbols.Table, opts Options) (Entry, error) {
	res, err := p.Phonemize(e.Text)
	if err != nil {
		return e, fmt.Errorf("g2p: %w", err)
	}

	phones := res.Phones()
	e.Phone = strings.Join(phones, " ")

	if table != nil {
		ids, err := table.Encode(phones)
		if err != nil {
			return e, err
		}

		e.IDs = ids
	}

	if opts.ProbeAudio {
		path := e.AudioPath
		if opts.AudioDir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(opts.AudioDir, path)
		}

		info, err := audio.ProbeFile(path)
		if err != nil {
			return e, fmt.Errorf("audio: %w", err)
		}

		if err := info.Expect(opts.SampleRate); err != nil {
			return e, fmt.Errorf("audio %s: %w", path, err)
		}

		e.AudioMS = info.Milliseconds()
	}

	return e, nil
}
