package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/bedrock-agent-chat/internal/config"
	"github.com/tjfontaine/bedrock-agent-chat/internal/telemetry"
	"github.com/tjfontaine/bedrock-agent-chat/pkg/agentchat"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	opts := []agentchat.Option{
		agentchat.WithConfig(cfg),
		agentchat.WithLogger(logger),
	}

	shutdownTracer := telemetry.ShutdownFunc(telemetry.Noop)
	if cfg.Telemetry.Enabled {
		tp, shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, logger, telemetry.Options{})
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		shutdownTracer = shutdown
		opts = append(opts, agentchat.WithTracerProvider(tp))
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	app, err := agentchat.New(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping server")
	case err := <-app.Err():
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	// Turns may take minutes; give them the request timeout to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout+5*time.Second)
	defer cancel()

	return app.Shutdown(shutdownCtx)
}
