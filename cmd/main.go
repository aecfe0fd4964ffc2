package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"support-agent/internal/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "support-agent",
		Short:         "Customer support auto-reply webhook relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLambda(cmd.Context())
		},
	}
	root.AddCommand(lambdaCmd(), serveCmd())
	return root
}

func lambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda behind API Gateway (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLambda(cmd.Context())
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":3000", "listen address")
	return cmd
}

func runLambda(ctx context.Context) error {
	app, err := setup(ctx)
	if err != nil {
		return err
	}
	go app.guard.Run(ctx)

	lambda.Start(app.handler.Handle)
	return nil
}

func runServer(ctx context.Context, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := setup(ctx)
	if err != nil {
		return err
	}
	go app.guard.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "err", err)
		return err
	}
	return nil
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	a, err := build(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "err", err)
		return nil, err
	}
	return a, nil
}
