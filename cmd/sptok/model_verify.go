package main

import (
	"fmt"
	"slices"

	"github.com/example/go-sptok/internal/model"
	"github.com/spf13/cobra"
)

func newModelVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [path]",
		Short: "Check that a file is a well-formed SentencePiece model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			path := cfg.Paths.TokenizerModel
			if len(args) == 1 {
				path = args[0]
			}

			sum, err := model.Verify(path)
			if err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "verifying tokenizer model: %s\n", sum.Path)
			_, _ = fmt.Fprintf(out, "  ✓ sha256 %s\n", sum.SHA256)
			_, _ = fmt.Fprintf(out, "  ✓ %s model with %d pieces\n", sum.ModelType, sum.Pieces)

			types := make([]string, 0, len(sum.Counts))
			for t := range sum.Counts {
				types = append(types, t)
			}
			slices.Sort(types)

			for _, t := range types {
				_, _ = fmt.Fprintf(out, "    %-12s %d\n", t, sum.Counts[t])
			}

			return nil
		},
	}

	return cmd
}
