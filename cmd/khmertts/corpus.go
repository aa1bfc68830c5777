package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/example/go-khmer-tts/internal/config"
	"github.com/example/go-khmer-tts/internal/corpus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Inspect and phonemize training corpora",
	}

	cmd.AddCommand(newCorpusInventoryCmd())
	cmd.AddCommand(newCorpusCheckCmd())
	cmd.AddCommand(newCorpusPhonemizeCmd())

	return cmd
}

// corpusInput selects how a corpus file is parsed.
type corpusInput struct {
	format string
	wavs   string
}

func (in *corpusInput) register(fs *pflag.FlagSet) {
	fs.StringVar(&in.format, "format", "filelist", "Input format (filelist|index|manifest)")
	fs.StringVar(&in.wavs, "wavs", "", "Audio directory for index input and audio probing")
}

// read parses path ("-" for stdin) into corpus entries.
func (in *corpusInput) read(cmd *cobra.Command, path string) ([]corpus.Entry, error) {
	r, err := openInput(cmd, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var (
		entries []corpus.Entry
		skipped int
	)

	switch in.format {
	case "filelist":
		entries, skipped, err = corpus.ReadFilelist(r)
	case "index":
		var index []corpus.IndexEntry

		index, skipped, err = corpus.ReadIndex(r)
		entries = corpus.Filelist(index, in.wavs)
	case "manifest":
		entries, err = corpus.ReadManifest(r)
	default:
		return nil, fmt.Errorf("unknown corpus format %q (expected filelist|index|manifest)", in.format)
	}

	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		slog.Warn("skipped malformed corpus lines", "path", path, "skipped", skipped)
	}

	return entries, nil
}

// audioDir is where relative audio paths resolve. Index input already
// joined the wav directory into each path.
func (in *corpusInput) audioDir(path string) string {
	switch {
	case in.format == "index":
		return ""
	case in.wavs != "":
		return in.wavs
	case path == "-":
		return ""
	default:
		return filepath.Dir(path)
	}
}

func corpusOptions(cfg config.Config) corpus.Options {
	return corpus.Options{
		Workers:    cfg.Corpus.Workers,
		Strict:     cfg.Corpus.Strict,
		SampleRate: cfg.Corpus.SampleRate,
	}
}

func newCorpusInventoryCmd() *cobra.Command {
	var (
		in      corpusInput
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "inventory <file>",
		Short: "Count the phones a corpus uses and compare them with the table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			table, err := activeTable(cfg)
			if err != nil {
				return err
			}

			entries, err := in.read(cmd, args[0])
			if err != nil {
				return err
			}

			if in.format != "manifest" {
				p, err := loadPhonemizer(cfg)
				if err != nil {
					return err
				}

				opts := corpusOptions(cfg)
				opts.Strict = false

				// Without a table every entry phonemizes; coverage is
				// computed below.
				rep, err := corpus.Phonemize(cmd.Context(), entries, p, nil, opts)
				if err != nil {
					return err
				}

				entries = rep.Entries
			}

			inv := corpus.NewInventory(entries)
			cov := inv.Coverage(table)
			out := cmd.OutOrStdout()

			if jsonOut {
				return writeJSON(out, inventoryOutput{
					Preset:     string(table.Preset()),
					Utterances: inv.Utterances(),
					Tokens:     inv.Tokens(),
					Coverage:   cov,
				})
			}

			for _, tc := range inv.Tokens() {
				fmt.Fprintf(out, "%s\t%d\n", tc.Token, tc.Count)
			}

			fmt.Fprintf(out, "%d utterances, %d/%d phones in %s table\n", inv.Utterances(), cov.Covered, cov.Total, table.Preset())

			for _, tc := range cov.Missing {
				fmt.Fprintf(out, "missing\t%s\t%d\n", tc.Token, tc.Count)
			}

			return nil
		},
	}

	in.register(cmd.Flags())
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the inventory as JSON")

	return cmd
}

type inventoryOutput struct {
	Preset     string              `json:"preset"`
	Utterances int                 `json:"utterances"`
	Tokens     []corpus.TokenCount `json:"tokens"`
	Coverage   corpus.Coverage     `json:"coverage"`
}

func newCorpusCheckCmd() *cobra.Command {
	var (
		in    corpusInput
		probe bool
	)

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Fail when any utterance needs a phone the table lacks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			rep, err := phonemizeCorpus(cmd, cfg, &in, args[0], probe)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range rep.Failures {
				fmt.Fprintf(out, "FAIL: %v\n", f)
			}

			if len(rep.Failures) > 0 {
				return fmt.Errorf("%d of %d entries failed", len(rep.Failures), len(rep.Failures)+len(rep.Entries))
			}

			_, err = fmt.Fprintf(out, "%d entries ok\n", len(rep.Entries))

			return err
		},
	}

	in.register(cmd.Flags())
	cmd.Flags().BoolVar(&probe, "probe-audio", false, "Also check that every audio file is a readable WAV")

	return cmd
}

func newCorpusPhonemizeCmd() *cobra.Command {
	var (
		in     corpusInput
		out    string
		format string
		probe  bool
	)

	cmd := &cobra.Command{
		Use:   "phonemize <file>",
		Short: "Phonemize a corpus into a JSON lines manifest or a phone filelist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if format != "manifest" && format != "filelist" {
				return fmt.Errorf("unknown output format %q (expected manifest|filelist)", format)
			}

			rep, err := phonemizeCorpus(cmd, cfg, &in, args[0], probe)
			if err != nil {
				return err
			}

			for _, f := range rep.Failures {
				slog.Warn("skipped corpus entry", "line", f.Line, "audio_path", f.AudioPath, "error", f.Err)
			}

			w, err := createOutput(cmd, out)
			if err != nil {
				return err
			}

			if format == "filelist" {
				phoneList := make([]corpus.Entry, len(rep.Entries))
				for i, e := range rep.Entries {
					phoneList[i] = corpus.Entry{AudioPath: e.AudioPath, Text: e.Phone}
				}

				err = corpus.WriteFilelist(w, phoneList)
			} else {
				err = corpus.WriteManifest(w, rep.Entries)
			}

			if cerr := w.Close(); err == nil {
				err = cerr
			}

			if err != nil {
				return err
			}

			slog.Info("corpus phonemized", "entries", len(rep.Entries), "skipped", len(rep.Failures), "out", out)

			return nil
		},
	}

	in.register(cmd.Flags())
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default stdout)")
	cmd.Flags().StringVar(&format, "to", "manifest", "Output format (manifest|filelist)")
	cmd.Flags().BoolVar(&probe, "probe-audio", false, "Record audio_ms from each WAV and reject unreadable audio")

	return cmd
}

// phonemizeCorpus reads path and phonemizes it against the active table.
func phonemizeCorpus(cmd *cobra.Command, cfg config.Config, in *corpusInput, path string, probe bool) (corpus.Report, error) {
	table, err := activeTable(cfg)
	if err != nil {
		return corpus.Report{}, err
	}

	p, err := loadPhonemizer(cfg)
	if err != nil {
		return corpus.Report{}, err
	}

	entries, err := in.read(cmd, path)
	if err != nil {
		return corpus.Report{}, err
	}

	if len(entries) == 0 {
		return corpus.Report{}, errors.New("corpus has no entries")
	}

	opts := corpusOptions(cfg)
	opts.ProbeAudio = probe
	opts.AudioDir = in.audioDir(path)

	return corpus.Phonemize(cmd.Context(), entries, p, table, opts)
}
