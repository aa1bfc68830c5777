package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/example/go-khmer-tts/internal/config"
	"github.com/example/go-khmer-tts/internal/corpus"
	"github.com/example/go-khmer-tts/internal/g2p"
	"github.com/example/go-khmer-tts/internal/server"
	"github.com/example/go-khmer-tts/internal/symbols"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "khmertts",
		Short:         "Khmer TTS symbol table and text front-end",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}

			if err := loaded.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			activeCfg = loaded
			setupLogger(loaded.LogLevel)

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newSymbolsCmd())
	cmd.AddCommand(newNormalizeCmd())
	cmd.AddCommand(newSegmentCmd())
	cmd.AddCommand(newG2PCmd())
	cmd.AddCommand(newCorpusCmd())
	cmd.AddCommand(newCheckpointCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}

	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Symbols.Preset == "" {
		return config.Config{}, errors.New("configuration not loaded")
	}

	return activeCfg, nil
}

// activeTable builds the symbol table selected by cfg.
func activeTable(cfg config.Config) (*symbols.Table, error) {
	p, err := symbols.ParsePreset(cfg.Symbols.Preset)
	if err != nil {
		return nil, err
	}

	return symbols.Build(p)
}

// loadPhonemizer loads the configured lexicon. A missing lexicon file is not
// fatal: the phonemizer falls back to spelling words out.
func loadPhonemizer(cfg config.Config) (*g2p.Phonemizer, error) {
	p, err := g2p.Load(cfg.Paths.Lexicon, server.G2POptions(cfg))
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("lexicon not found, spelling every word", "path", cfg.Paths.Lexicon)
		return g2p.Load("", server.G2POptions(cfg))
	}

	return p, err
}

// inputText joins args, or reads stdin when there are none.
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}

	return strings.TrimRight(string(data), "\r\n"), nil
}

// inputLines yields the args one per line, or stdin lines when there are no
// args. Blank lines are dropped.
func inputLines(cmd *cobra.Command, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	var lines []string

	sc := bufio.NewScanner(cmd.InOrStdin())
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}

	return lines, nil
}

// openInput opens path for reading. "-" selects stdin; .gz and .zst files
// are decompressed.
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}

	return corpus.OpenFile(path)
}

// createOutput creates path for writing. Empty or "-" selects stdout; .gz
// and .zst paths are compressed.
func createOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}

	return corpus.CreateFile(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
