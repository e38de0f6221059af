package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newEmbeddingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embeddings",
		Short: "Manage the intent embedding cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Re-embed every intent description and replace the cached vectors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = l.Sync() }()

			ctx := cmd.Context()
			a := &app{cfg: cfg, logger: l}
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			llm, err := a.openAI(ctx)
			if err != nil {
				return fmt.Errorf("create OpenAI client: %w", err)
			}
			matcher, err := a.semanticMatcher(llm)
			if err != nil {
				return err
			}

			start := time.Now()
			if err := matcher.Rebuild(ctx); err != nil {
				return err
			}
			l.Info("embedding cache rebuilt", zap.Duration("took", time.Since(start)))
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt intent embeddings with %s\n", llm.EmbeddingModel())
			return nil
		},
	})
	return cmd
}
