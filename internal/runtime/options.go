package runtime

import (
	"fmt"
	"log/slog"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/bedrock-agent-chat/internal/agent"
	"github.com/tjfontaine/bedrock-agent-chat/internal/config"
)

// Option is a functional option for configuring an App.
type Option func(*App) error

// WithFileConfig loads configuration from a YAML file and the environment.
// A missing file is allowed; the environment alone may configure the app.
func WithFileConfig(path string) Option {
	return func(a *App) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		a.cfg = cfg
		return nil
	}
}

// WithTransport replaces the Bedrock transport, e.g. with a fake in tests.
func WithTransport(t agent.Transport) Option {
	return func(a *App) error {
		a.transport = t
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithTracerProvider sets the tracer provider used for agent.invoke spans.
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(a *App) error {
		a.tracerProvider = tp
		return nil
	}
}
