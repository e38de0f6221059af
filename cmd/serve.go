package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"analytics-agent/handler"
	"analytics-agent/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return opts.withApp(ctx, func(ctx context.Context, a *app) error {
				sc := a.cfg.Server
				if addr != "" {
					sc.Addr = addr
				}
				srv, err := server.New(server.Config{
					Addr:           sc.Addr,
					RequestTimeout: sc.RequestTimeout,
					AllowedOrigins: sc.AllowedOrigins,
				}, a.service, a.registry, a.logger.Named("http"))
				if err != nil {
					return err
				}

				errCh := make(chan error, 1)
				go func() { errCh <- srv.Start() }()

				select {
				case err := <-errCh:
					return err
				case <-ctx.Done():
				}
				a.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func newLambdaCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve API Gateway events as an AWS Lambda function",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(_ context.Context, a *app) error {
				h, err := handler.NewHandler(a.service, a.logger.Named("lambda"))
				if err != nil {
					return err
				}
				a.logger.Info("lambda handler ready", zap.String("backend", a.cfg.Conversation.Backend))
				lambda.Start(h.Handle)
				return nil
			})
		},
	}
}
