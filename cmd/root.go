package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"analytics-agent/internal/config"
	"analytics-agent/internal/logger"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "analytics-agent",
		Short: "Answer marketing analytics questions in natural language",
		Long: `analytics-agent resolves questions about customers, payments, topics,
emotions, revenue and countries to analytics operations over MongoDB and
narrates the results. It runs as an HTTP server, as an AWS Lambda handler
or as a one-shot CLI.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (default: ./config.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level")

	cmd.AddCommand(
		newServeCmd(opts),
		newLambdaCmd(opts),
		newAskCmd(opts),
		newExplainCmd(opts),
		newEmbeddingsCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	l, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}

// withApp runs fn against a fully wired app and releases it afterwards.
func (o *rootOptions) withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, l, err := o.load()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	a, err := newApp(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			l.Warn("shutdown", zap.Error(err))
		}
	}()
	return fn(ctx, a)
}
