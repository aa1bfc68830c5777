package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/go-khmer-tts/internal/checkpoint"
	"github.com/example/go-khmer-tts/internal/config"
	"github.com/spf13/cobra"
)

func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Find training checkpoints and check their vocabulary",
	}

	cmd.AddCommand(newCheckpointLatestCmd())
	cmd.AddCommand(newCheckpointVerifyCmd())
	cmd.AddCommand(newCheckpointStampCmd())
	cmd.AddCommand(newCheckpointWriteVocabCmd())
	cmd.AddCommand(newCheckpointRemapCmd())

	return cmd
}

// checkpointDir returns the positional directory argument or the
// configured one.
func checkpointDir(cfg config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return cfg.Paths.CheckpointDir
}

func newCheckpointLatestCmd() *cobra.Command {
	var stepsPerEpoch int64

	cmd := &cobra.Command{
		Use:   "latest [dir]",
		Short: "Print the newest complete checkpoint step",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			step, err := checkpoint.Latest(checkpointDir(cfg, args))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "step\t%d\nmodel\t%s\noptimizer\t%s\n", step.Number, step.Model, step.Optimizer)

			if epoch := checkpoint.ResumeEpoch(step.Number, stepsPerEpoch); epoch > 0 {
				fmt.Fprintf(out, "resume_epoch\t%d\n", epoch)
			}

			return nil
		},
	}

	cmd.Flags().Int64Var(&stepsPerEpoch, "steps-per-epoch", 0, "Print the epoch training resumes at")

	return cmd
}

func newCheckpointVerifyCmd() *cobra.Command {
	var (
		step            int64
		allowUnverified bool
	)

	cmd := &cobra.Command{
		Use:   "verify [checkpoint-or-dir]",
		Short: "Check that a checkpoint was trained with the active symbol table",
		Long: "Verify accepts a checkpoint file or a directory. For a directory the\n" +
			"latest complete step is checked, or --step when given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			table, err := activeTable(cfg)
			if err != nil {
				return err
			}

			path, err := resolveCheckpoint(checkpointDir(cfg, args), step)
			if err != nil {
				return err
			}

			rep, err := checkpoint.Verify(path, table, checkpoint.VerifyOptions{
				EmbeddingTensor: cfg.Checkpoint.Embedding,
				AllowUnverified: allowUnverified,
			})
			if err != nil {
				return err
			}

			evidence := strings.Join(rep.Checked, ", ")
			if rep.Unverified {
				evidence = "unverified"
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok for %s table (%s)\n", path, table.Preset(), evidence)

			return err
		},
	}

	cmd.Flags().Int64Var(&step, "step", 0, "Step to verify when given a directory (default latest)")
	cmd.Flags().BoolVar(&allowUnverified, "allow-unverified", false, "Accept checkpoints that carry no vocabulary evidence")

	return cmd
}

// resolveCheckpoint maps a directory to the model file of a step. Files are
// returned unchanged.
func resolveCheckpoint(path string, step int64) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}

	if !info.IsDir() {
		return path, nil
	}

	var st checkpoint.Step
	if step > 0 {
		st, err = checkpoint.Find(path, step)
	} else {
		st, err = checkpoint.Latest(path)
	}

	if err != nil {
		return "", err
	}

	return st.Model, nil
}

func newCheckpointStampCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stamp <checkpoint.safetensors>...",
		Short: "Record the active vocabulary in safetensors checkpoint metadata",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			table, err := activeTable(cfg)
			if err != nil {
				return err
			}

			for _, path := range args {
				if err := checkpoint.Stamp(path, table); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "stamped %s (%s, %d symbols)\n", path, table.Preset(), table.Len())
			}

			return nil
		},
	}
}

func newCheckpointWriteVocabCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write-vocab [dir]",
		Short: "Write the vocab.json manifest into a checkpoint directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			table, err := activeTable(cfg)
			if err != nil {
				return err
			}

			dir := checkpointDir(cfg, args)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create checkpoint dir: %w", err)
			}

			path, err := checkpoint.WriteVocab(dir, table)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)

			return err
		},
	}
}

func newCheckpointRemapCmd() *cobra.Command {
	var (
		output string
		strip  []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "remap <checkpoint.safetensors>",
		Short: "Reorder a checkpoint's embedding rows to the active symbol table",
		Long: "Remap matches embedding rows by token using the vocab.json beside the\n" +
			"checkpoint. Tokens new to the active table start from the mean row.\n" +
			"Without --output the checkpoint and its vocab.json are rewritten in place.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			table, err := activeTable(cfg)
			if err != nil {
				return err
			}

			src := args[0]

			dst := output
			switch {
			case dst == "":
				dst = src
			case filepath.Ext(dst) == "":
				dst = filepath.Join(dst, filepath.Base(src))
			}

			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			rep, err := checkpoint.Remap(src, dst, table, checkpoint.RemapOptions{
				EmbeddingTensor: cfg.Checkpoint.Embedding,
				StripPrefixes:   strip,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rep)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "remapped %s -> %s for %s table: kept %d, added %d, dropped %d\n",
				rep.Source, rep.Output, table.Preset(), rep.Kept, len(rep.Added), len(rep.Dropped))

			for _, tok := range rep.Added {
				fmt.Fprintf(out, "added\t%s\n", tok)
			}

			for _, tok := range rep.Dropped {
				fmt.Fprintf(out, "dropped\t%s\n", tok)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output checkpoint file or directory (default: rewrite in place)")
	cmd.Flags().StringSliceVar(&strip, "strip-prefix", nil, "Tensor name prefix to strip, e.g. module.")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}
