package main

import (
	"fmt"
	"os"

	"github.com/example/go-sptok/internal/vocab"
	"github.com/spf13/cobra"
)

func newVocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Inspect the tokenizer vocabulary",
	}

	cmd.AddCommand(newVocabInfoCmd())
	cmd.AddCommand(newVocabLookupCmd())
	cmd.AddCommand(newVocabExportCmd())
	return cmd
}

func newVocabInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print vocabulary size and reserved indices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadPipeline()
			if err != nil {
				return err
			}

			m := p.Model
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"model type: %s\nengine: %s\nvocabulary size: %d\nunk: %d\nbos: %d\neos: %d\npad: %d\n",
				m.ModelType(), m.Engine(), m.VocabularySize(), m.UnkIdx(), m.BOSIdx(), m.EOSIdx(), m.PadIdx())
			return err
		},
	}
}

func newVocabLookupCmd() *cobra.Command {
	var byIndex bool

	cmd := &cobra.Command{
		Use:   "lookup <token|index>...",
		Short: "Look up pieces by text, or by index with --index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline()
			if err != nil {
				return err
			}

			m := p.Model

			indices := make([]int32, 0, len(args))
			if byIndex {
				indices, err = parseIDs(args)
				if err != nil {
					return err
				}
			} else {
				for _, tok := range args {
					indices = append(indices, m.TokenToIndex(tok))
				}
			}

			for _, idx := range indices {
				piece, err := m.IndexToToken(idx)
				if err != nil {
					return err
				}

				kind, _ := m.Kind(idx)
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", idx, piece, kind); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&byIndex, "index", false, "Treat arguments as indices")

	return cmd
}

func newVocabExportCmd() *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the vocabulary as json, yaml or toml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := vocab.ParseFormat(format)
			if err != nil {
				return err
			}

			p, err := loadPipeline()
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return vocab.Export(cmd.OutOrStdout(), p.Model, f)
			}

			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}

			if err := vocab.Export(file, p.Model, f); err != nil {
				_ = file.Close()
				return err
			}

			if err := file.Close(); err != nil {
				return fmt.Errorf("close %s: %w", output, err)
			}

			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d pieces to %s (%s)\n",
				p.Model.VocabularySize(), output, f)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format (json|yaml|toml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")

	return cmd
}
