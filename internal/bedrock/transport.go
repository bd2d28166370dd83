// Package bedrock implements agent.Transport on top of the Bedrock Agent
// Runtime InvokeAgent API.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/smithy-go"

	"github.com/tjfontaine/bedrock-agent-chat/internal/agent"
)

// Invoker is the subset of the Bedrock Agent Runtime client used here.
type Invoker interface {
	InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
}

// Option configures the transport.
type Option func(*Transport)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithLoadOptions adds options used when loading the AWS configuration,
// such as a shared config profile.
func WithLoadOptions(opts ...func(*awsconfig.LoadOptions) error) Option {
	return func(t *Transport) {
		t.loadOptions = append(t.loadOptions, opts...)
	}
}

// WithInvoker uses a fixed client for every region.
func WithInvoker(inv Invoker) Option {
	return func(t *Transport) {
		t.newInvoker = func(context.Context, string) (Invoker, error) {
			return inv, nil
		}
	}
}

// Transport sends converse requests to Bedrock. Clients are created lazily
// and cached per region.
type Transport struct {
	logger      *slog.Logger
	loadOptions []func(*awsconfig.LoadOptions) error
	newInvoker  func(ctx context.Context, region string) (Invoker, error)

	mu       sync.Mutex
	invokers map[string]Invoker
}

// New creates a Bedrock transport.
func New(opts ...Option) *Transport {
	t := &Transport{
		logger:   slog.Default(),
		invokers: make(map[string]Invoker),
	}
	t.newInvoker = t.loadInvoker
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) loadInvoker(ctx context.Context, region string) (Invoker, error) {
	opts := append([]func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}, t.loadOptions...)
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return bedrockagentruntime.NewFromConfig(cfg), nil
}

func (t *Transport) invoker(ctx context.Context, region string) (Invoker, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if inv, ok := t.invokers[region]; ok {
		return inv, nil
	}
	inv, err := t.newInvoker(ctx, region)
	if err != nil {
		return nil, err
	}
	t.invokers[region] = inv
	return inv, nil
}

// Send calls InvokeAgent and returns its event stream.
func (t *Transport) Send(ctx context.Context, req agent.Request) (agent.Stream, error) {
	inv, err := t.invoker(ctx, req.Region)
	if err != nil {
		return nil, agent.NewTransportError(agent.ErrorTypeAuthentication, "invoke", err)
	}

	out, err := inv.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(req.AgentID),
		AgentAliasId: aws.String(req.AgentAliasID),
		SessionId:    aws.String(req.SessionID),
		InputText:    aws.String(req.Prompt),
		EnableTrace:  aws.Bool(req.EnableTrace),
	})
	if err != nil {
		return nil, classify("invoke", err)
	}

	t.logger.Debug("invoke agent stream opened",
		slog.String("agent_id", req.AgentID),
		slog.String("session_id", req.SessionID),
	)
	return &eventStream{events: out.GetStream(), logger: t.logger}, nil
}

// sdkStream is the subset of *bedrockagentruntime.InvokeAgentEventStream
// consumed by eventStream.
type sdkStream interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

type eventStream struct {
	events sdkStream
	logger *slog.Logger
}

// Next blocks until the next convertible event arrives or ctx is done.
// Events of kinds the console does not display are skipped.
func (s *eventStream) Next(ctx context.Context) (agent.Event, error) {
	for {
		var (
			ev types.ResponseStream
			ok bool
		)
		select {
		case <-ctx.Done():
			return nil, classify("stream", ctx.Err())
		case ev, ok = <-s.events.Events():
		}
		if !ok {
			if err := s.events.Err(); err != nil {
				return nil, classify("stream", err)
			}
			return nil, io.EOF
		}
		out, ok := convertEvent(ev)
		if !ok {
			s.logger.Debug("skipping agent stream event", slog.String("type", fmt.Sprintf("%T", ev)))
			continue
		}
		return out, nil
	}
}

func (s *eventStream) Close() error {
	return s.events.Close()
}

// classify maps SDK errors onto the transport error taxonomy.
func classify(op string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return agent.NewTransportError(agent.ErrorTypeNetwork, op, err)
	}

	code := apiErr.ErrorCode()
	var errType agent.ErrorType
	switch code {
	case "ThrottlingException", "ServiceQuotaExceededException":
		errType = agent.ErrorTypeRateLimit
	case "AccessDeniedException":
		errType = agent.ErrorTypePermission
	case "UnrecognizedClientException", "ExpiredTokenException", "InvalidSignatureException":
		errType = agent.ErrorTypeAuthentication
	case "ResourceNotFoundException":
		errType = agent.ErrorTypeNotFound
	case "ValidationException", "ConflictException":
		errType = agent.ErrorTypeInvalidRequest
	case "ModelNotReadyException", "ServiceUnavailableException":
		errType = agent.ErrorTypeOverloaded
	default:
		errType = agent.ErrorTypeServer
	}
	return agent.NewTransportError(errType, op, err).WithCode(code)
}
