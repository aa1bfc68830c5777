package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/example/go-khmer-tts/internal/g2p"
	"github.com/example/go-khmer-tts/internal/symbols"
	"github.com/example/go-khmer-tts/internal/text"
	"github.com/spf13/cobra"
)

func newNormalizeCmd() *cobra.Command {
	var (
		digits bool
		skip   []string
	)

	cmd := &cobra.Command{
		Use:   "normalize [text...]",
		Short: "Expand numbers, dates, times and symbols into Khmer words",
		Long:  "Normalize reads text from the arguments or stdin and prints its spoken form.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireConfig(); err != nil {
				return err
			}

			in, err := inputText(cmd, args)
			if err != nil {
				return err
			}

			in, err = text.Normalize(in)
			if err != nil {
				return err
			}

			opts, err := normalizeOptions(skip)
			if err != nil {
				return err
			}

			if digits {
				opts.Cardinals = false
				opts.Digits = true
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), text.NormalizeKhmer(in, opts))

			return err
		},
	}

	cmd.Flags().BoolVar(&digits, "digits", false, "Read remaining numbers digit by digit instead of as cardinals")
	cmd.Flags().StringSliceVar(&skip, "skip", nil,
		"Stages to disable (electronic,emoticons,telephone,time,money,measure,dates,fractions,decimals,cardinals)")

	return cmd
}

// normalizeOptions disables the named stages of text.DefaultOptions.
func normalizeOptions(skip []string) (text.Options, error) {
	opts := text.DefaultOptions()

	stages := map[string]*bool{
		"electronic": &opts.Electronic,
		"emoticons":  &opts.Emoticons,
		"telephone":  &opts.Telephone,
		"time":       &opts.Time,
		"money":      &opts.Money,
		"measure":    &opts.Measure,
		"dates":      &opts.Dates,
		"fractions":  &opts.Fractions,
		"decimals":   &opts.Decimals,
		"cardinals":  &opts.Cardinals,
	}

	for _, name := range skip {
		stage, ok := stages[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return opts, fmt.Errorf("unknown normalization stage %q", name)
		}

		*stage = false
	}

	return opts, nil
}

func newSegmentCmd() *cobra.Command {
	var sep string

	cmd := &cobra.Command{
		Use:   "segment [text...]",
		Short: "Split unspaced Khmer text into lexicon words",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			method, err := text.ParseMethod(cfg.Text.SegmentMethod)
			if err != nil {
				return err
			}

			p, err := loadPhonemizer(cfg)
			if err != nil {
				return err
			}

			in, err := inputText(cmd, args)
			if err != nil {
				return err
			}

			in, err = text.Normalize(in)
			if err != nil {
				return err
			}

			var words text.WordSet
			if lex := p.Lexicon(); lex != nil {
				words = lex
			}

			segs, err := text.Segment(in, words, method)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(segs, sep))

			return err
		},
	}

	cmd.Flags().StringVar(&sep, "sep", " ", "Separator printed between words")

	return cmd
}

func newG2PCmd() *cobra.Command {
	var (
		jsonOut  bool
		ids      bool
		maxChars int
	)

	cmd := &cobra.Command{
		Use:   "g2p [text...]",
		Short: "Convert text to phone tokens",
		Long: "G2P normalizes and segments text from the arguments or stdin and prints\n" +
			"the space separated phone sequence, one line per stdin line. With\n" +
			"--max-chars each line is split into sentence chunks of at most that\n" +
			"many characters and every chunk gets its own output line.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			table, err := activeTable(cfg)
			if err != nil {
				return err
			}

			p, err := loadPhonemizer(cfg)
			if err != nil {
				return err
			}

			lines, err := inputLines(cmd, args)
			if err != nil {
				return err
			}

			if len(args) > 0 {
				lines = []string{strings.Join(args, " ")}
			}

			for _, line := range lines {
				results, err := phonemizeLine(p, line, maxChars)
				if err != nil {
					return err
				}

				for _, res := range results {
					if err := printG2P(cmd, table, res, jsonOut, ids); err != nil {
						return err
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print words, phones, ids and missing tokens as JSON")
	cmd.Flags().BoolVar(&ids, "ids", false, "Print symbol ids instead of phones")
	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "Split lines into sentence chunks of at most this many characters (0 disables)")

	return cmd
}

type g2pOutput struct {
	Text    string     `json:"text"`
	Words   []g2p.Word `json:"words"`
	Phones  string     `json:"phones"`
	IDs     []int      `json:"ids"`
	Missing []string   `json:"missing,omitempty"`
	OOV     []string   `json:"oov,omitempty"`
}

func phonemizeLine(p *g2p.Phonemizer, line string, maxChars int) ([]g2p.Result, error) {
	if maxChars > 0 {
		return p.PhonemizeChunks(line, maxChars)
	}

	res, err := p.Phonemize(line)
	if err != nil {
		return nil, err
	}

	return []g2p.Result{res}, nil
}

func printG2P(cmd *cobra.Command, table *symbols.Table, res g2p.Result, jsonOut, ids bool) error {
	out := cmd.OutOrStdout()
	encoded, missing := table.EncodeLenient(res.Phones())

	if jsonOut {
		return writeJSON(out, g2pOutput{
			Text:    res.Text,
			Words:   res.Words,
			Phones:  res.String(),
			IDs:     encoded,
			Missing: missing,
			OOV:     res.OOV(),
		})
	}

	if ids {
		fmt.Fprintln(out, joinInts(encoded))
	} else {
		fmt.Fprintln(out, res.String())
	}

	if len(missing) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: not in %s table: %s\n", table.Preset(), strings.Join(missing, " "))
	}

	return nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}

	return strings.Join(parts, " ")
}
