// Package runtime assembles the agent chat application: configuration,
// the Bedrock transport, the session manager and the HTTP server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/bedrock-agent-chat/internal/agent"
	"github.com/tjfontaine/bedrock-agent-chat/internal/auth"
	"github.com/tjfontaine/bedrock-agent-chat/internal/bedrock"
	"github.com/tjfontaine/bedrock-agent-chat/internal/config"
	"github.com/tjfontaine/bedrock-agent-chat/internal/server"
	"github.com/tjfontaine/bedrock-agent-chat/internal/session"
	"github.com/tjfontaine/bedrock-agent-chat/internal/tokens"
)

// App is the assembled application. It can serve the HTTP API or hand its
// session manager to another front-end such as the terminal chat.
type App struct {
	// Dependencies (injected via options)
	cfg            *config.Config
	transport      agent.Transport
	tracerProvider oteltrace.TracerProvider
	logger         *slog.Logger

	client   *agent.Client
	sessions *session.Manager
	server   *server.Server

	mu      sync.Mutex
	started bool
	errCh   chan error
}

// New creates an App with the given options. A configuration is required
// and must validate.
func New(opts ...Option) (*App, error) {
	a := &App{
		logger: slog.Default(),
		errCh:  make(chan error, 1),
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if a.cfg == nil {
		return nil, fmt.Errorf("config required (use WithFileConfig or WithConfig)")
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if a.transport == nil {
		a.transport = bedrock.New(bedrock.WithLogger(a.logger))
	}

	clientOpts := []agent.ClientOption{agent.WithLogger(a.logger)}
	if a.tracerProvider != nil {
		clientOpts = append(clientOpts, agent.WithTracerProvider(a.tracerProvider))
	}
	a.client = agent.NewClient(a.transport, clientOpts...)

	a.sessions = session.NewManager(a.client,
		session.AgentConfig{
			AgentID:      a.cfg.Agent.ID,
			AgentAliasID: a.cfg.Agent.AliasID,
			Region:       a.cfg.Agent.Region,
			EnableTrace:  a.cfg.Agent.EnableTrace,
		},
		session.WithLogger(a.logger),
		session.WithTokenCounter(tokens.NewCounter(a.cfg.Tokens.Encoding)),
	)

	authenticator, err := auth.NewAuthenticator(a.cfg.Server.APIKeyHashes)
	if err != nil {
		return nil, fmt.Errorf("invalid config: server.api_key_hashes: %w", err)
	}
	if !authenticator.Enabled() {
		a.logger.Info("no API keys configured, the HTTP API is open")
	}

	a.server = server.New(server.Config{
		Port:           a.cfg.Server.Port,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		UploadLimit:    a.cfg.Server.UploadLimit,
		Info:           server.Info{Title: a.cfg.UI.Title, Icon: a.cfg.UI.Icon},
		Authenticator:  authenticator,
	}, a.sessions, a.logger)

	return a, nil
}

// Config returns the validated configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler {
	return a.server.Router
}

// Start serves the HTTP API in the background. Listen failures are
// reported on Err.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return errors.New("already started")
	}
	a.started = true

	go func() {
		if err := a.server.Start(); err != nil {
			a.errCh <- err
		}
		close(a.errCh)
	}()

	a.logger.Info("agent chat started",
		slog.Int("port", a.cfg.Server.Port),
		slog.String("agent_id", a.cfg.Agent.ID),
		slog.String("agent_alias_id", a.cfg.Agent.AliasID),
		slog.String("region", a.cfg.Agent.Region))

	return nil
}

// Err reports a failure of the background server. It is closed once the
// server stops.
func (a *App) Err() <-chan error {
	return a.errCh
}

// Shutdown gracefully stops the HTTP server.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.logger.Info("shutting down agent chat")

	if !a.started {
		return nil
	}
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		return err
	}

	a.logger.Info("agent chat shutdown complete", slog.Int("sessions", a.sessions.Len()))
	return nil
}
