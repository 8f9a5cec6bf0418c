package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [index...]",
		Short: "Decode token indices into text (reads stdin without arguments)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := args
			if len(fields) == 0 {
				raw, err := inputText(cmd, nil)
				if err != nil {
					return err
				}

				fields = strings.Fields(raw)
			}

			ids, err := parseIDs(fields)
			if err != nil {
				return err
			}

			p, err := loadPipeline()
			if err != nil {
				return err
			}

			s, err := p.Decoder.Decode(ids)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
			return err
		},
	}

	return cmd
}
