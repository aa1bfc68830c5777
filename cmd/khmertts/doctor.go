package main

import (
	"errors"
	"fmt"

	"github.com/example/go-khmer-tts/internal/checkpoint"
	"github.com/example/go-khmer-tts/internal/doctor"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var allowUnverified bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the symbol table, lexicon and latest checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			result := doctor.Run(doctor.Config{
				Preset:        cfg.Symbols.Preset,
				LexiconPath:   cfg.Paths.Lexicon,
				CheckpointDir: cfg.Paths.CheckpointDir,
				Verify: checkpoint.VerifyOptions{
					EmbeddingTensor: cfg.Checkpoint.Embedding,
					AllowUnverified: allowUnverified,
				},
			}, out)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&allowUnverified, "allow-unverified", false, "Accept a checkpoint that carries no vocabulary evidence")

	return cmd
}
