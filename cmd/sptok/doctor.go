package main

import (
	"fmt"

	"github.com/example/go-sptok/internal/doctor"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var sample string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run tokenizer model and configuration checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			var result doctor.Result

			opts, err := cfg.Tokenizer.ModelOptions()
			if err != nil {
				result.AddFailure(fmt.Sprintf("config: %v", err))
				_, _ = fmt.Fprintf(out, "%s config: %v\n", doctor.FailMark, err)
			} else {
				result = doctor.Run(doctor.Config{
					ModelPath: cfg.Paths.TokenizerModel,
					Options:   opts,
					Encoder:   cfg.Tokenizer.EncoderOptions(),
					Sample:    sample,
				}, out)
			}

			if result.Failed() {
				return fmt.Errorf("doctor found %d issue(s)", len(result.Failures()))
			}

			_, _ = fmt.Fprintln(out, "all checks passed")

			return nil
		},
	}

	cmd.Flags().StringVar(&sample, "sample", doctor.DefaultSample, "Text used for the encode/decode round trip")

	return cmd
}
