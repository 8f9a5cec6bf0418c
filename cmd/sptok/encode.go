package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/example/go-sptok/internal/text"
	"github.com/spf13/cobra"
)

func newEncodeCmd() *cobra.Command {
	var pieces bool
	var splitSentences bool

	cmd := &cobra.Command{
		Use:   "encode [text...]",
		Short: "Encode text into token indices (reads stdin without arguments)",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := inputText(cmd, args)
			if err != nil {
				return err
			}

			input, err := text.Normalize(raw)
			if err != nil {
				return err
			}

			p, err := loadPipeline()
			if err != nil {
				return err
			}

			lines := []string{input}
			if splitSentences {
				lines = text.Sentences(input)
			}

			out := cmd.OutOrStdout()
			for _, line := range lines {
				if pieces {
					ps, err := p.Encoder.EncodeAsPieces(line)
					if err != nil {
						return err
					}

					if _, err := fmt.Fprintln(out, strings.Join(ps, " ")); err != nil {
						return err
					}

					continue
				}

				ids, err := p.Encoder.Encode(line)
				if err != nil {
					return err
				}

				if _, err := fmt.Fprintln(out, formatIDs(ids)); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&pieces, "pieces", false, "Print pieces instead of indices")
	cmd.Flags().BoolVar(&splitSentences, "split-sentences", false, "Encode each sentence on its own line")

	return cmd
}

func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}

	return string(data), nil
}

func formatIDs(ids []int32) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}

	return strings.Join(parts, " ")
}

func parseIDs(fields []string) ([]int32, error) {
	ids := make([]int32, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseInt(strings.TrimSpace(f), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid token index %q: %w", f, err)
		}

		ids = append(ids, int32(n))
	}

	return ids, nil
}
