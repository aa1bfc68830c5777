package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/example/go-khmer-tts/internal/symbols"
	"github.com/spf13/cobra"
)

func newSymbolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "Inspect the symbol table",
	}

	cmd.AddCommand(newSymbolsListCmd())
	cmd.AddCommand(newSymbolsSizeCmd())
	cmd.AddCommand(newSymbolsHashCmd())
	cmd.AddCommand(newSymbolsCheckCmd())
	cmd.AddCommand(newSymbolsManifestCmd())

	return cmd
}

func newSymbolsListCmd() *cobra.Command {
	var classes bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every symbol with its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			table, err := activeTable(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if classes {
				for _, cc := range table.Counts() {
					fmt.Fprintf(out, "%s\t%d\n", cc.Class, cc.Count)
				}

				return nil
			}

			for id, tok := range table.Tokens() {
				fmt.Fprintf(out, "%d\t%s\n", id, tok)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&classes, "classes", false, "Print per-class token counts instead of tokens")

	return cmd
}

func newSymbolsSizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Print the vocabulary size (embedding rows)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			table, err := activeTable(cfg)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), table.Len())

			return err
		},
	}
}

func newSymbolsHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Print the table fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			table, err := activeTable(cfg)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), table.Fingerprint())

			return err
		},
	}
}

func newSymbolsCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [phones...]",
		Short: "Report phone tokens the table does not contain",
		Long: "Check reads space separated phone sequences from the arguments, or one\n" +
			"sequence per stdin line, and lists every token missing from the table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			table, err := activeTable(cfg)
			if err != nil {
				return err
			}

			lines, err := inputLines(cmd, args)
			if err != nil {
				return err
			}

			var tokens []string
			for _, line := range lines {
				tokens = append(tokens, strings.Fields(line)...)
			}

			missing := table.Missing(tokens)
			if len(missing) == 0 {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "all %d tokens in %s table\n", len(tokens), table.Preset())
				return err
			}

			for _, tok := range missing {
				fmt.Fprintln(cmd.OutOrStdout(), tok)
			}

			return fmt.Errorf("%d tokens not in %s table: %w", len(missing), table.Preset(), symbols.ErrUnknownSymbol)
		},
	}

	return cmd
}

func newSymbolsManifestCmd() *cobra.Command {
	var (
		out    string
		verify string
	)

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Write or verify a " + symbols.ManifestFile + " vocabulary manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			table, err := activeTable(cfg)
			if err != nil {
				return err
			}

			if verify != "" {
				if out != "" {
					return errors.New("--out and --verify are mutually exclusive")
				}

				m, err := symbols.ReadManifest(verify)
				if err != nil {
					return err
				}

				if err := m.Verify(table); err != nil {
					return fmt.Errorf("%s: %w", verify, err)
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s matches %s table\n", verify, table.Preset())

				return err
			}

			m := symbols.NewManifest(table)
			if out == "" || out == "-" {
				return writeJSON(cmd.OutOrStdout(), m)
			}

			if filepath.Ext(out) == "" {
				out = filepath.Join(out, symbols.ManifestFile)
			}

			if err := symbols.WriteManifest(out, m); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %d symbols)\n", out, table.Preset(), table.Len())

			return err
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Manifest path or directory (default stdout)")
	cmd.Flags().StringVar(&verify, "verify", "", "Compare an existing manifest against the active table")

	return cmd
}
