package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/go-khmer-tts/internal/bench"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		input     string
		runs      int
		format    string
		warm      bool
		threshold time.Duration
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark normalization, segmentation and G2P latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if strings.TrimSpace(input) == "" {
				return errors.New("--text is required for bench")
			}

			if format != "table" && format != "json" {
				return errors.New("--format must be 'table' or 'json'")
			}

			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1, got %d", runs)
			}

			p, err := loadPhonemizer(cfg)
			if err != nil {
				return err
			}

			results, err := bench.Run(runs, func() (int, error) {
				res, err := p.Phonemize(input)
				if err != nil {
					return 0, err
				}

				return len(res.Phones()), nil
			})
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(bench.Durations(results, warm))

			out := cmd.OutOrStdout()
			if format == "json" {
				if err := bench.FormatJSON(results, stats, out); err != nil {
					return err
				}
			} else {
				bench.FormatTable(results, stats, out)
			}

			return bench.CheckThreshold(stats.Mean, threshold)
		},
	}

	cmd.Flags().StringVar(&input, "text", "", "Text to phonemize for each run (required)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().BoolVar(&warm, "warm", false, "Exclude the cold first run from the statistics")
	cmd.Flags().DurationVar(&threshold, "max-mean", 0, "Exit non-zero if mean latency exceeds this value (0 = disabled)")

	return cmd
}
