package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/go-sptok/internal/model"
	"github.com/spf13/cobra"
)

func newModelDownloadCmd() *cobra.Command {
	var hfToken string
	var filename string
	var revision string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a SentencePiece model from Hugging Face",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if hfToken == "" {
				hfToken = os.Getenv("HF_TOKEN")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			paths, err := model.Download(ctx, model.DownloadOptions{
				Manifest: model.ResolveManifest(cfg.Model.Repo, filename, revision),
				OutDir:   cfg.Model.OutDir,
				HFToken:  hfToken,
				Stdout:   cmd.OutOrStdout(),
			})
			if err != nil {
				var denied *model.AccessDeniedError
				if errors.As(err, &denied) && hfToken == "" {
					return fmt.Errorf("model download failed: %w (set --hf-token or HF_TOKEN for gated repositories)", err)
				}

				return fmt.Errorf("model download failed: %w", err)
			}

			for _, p := range paths {
				sum, err := model.Verify(p)
				if err != nil {
					return fmt.Errorf("downloaded file is not a sentencepiece model: %w", err)
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d pieces\n", sum.Path, sum.ModelType, sum.Pieces)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&hfToken, "hf-token", "", "Hugging Face token (falls back to HF_TOKEN env var)")
	cmd.Flags().StringVar(&filename, "file", "", "File to fetch from the repository (default "+model.DefaultFilename+")")
	cmd.Flags().StringVar(&revision, "revision", "", "Repository revision (default: pinned revision, else "+model.DefaultRevision+")")

	return cmd
}
