package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/bedrock-agent-chat/internal/citation"
	"github.com/tjfontaine/bedrock-agent-chat/internal/trace"
)

const tracerName = "github.com/tjfontaine/bedrock-agent-chat/internal/agent"

// ClientOption configures the client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp oteltrace.TracerProvider) ClientOption {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// Client performs converse calls through a Transport and aggregates the
// streamed events.
type Client struct {
	transport Transport
	logger    *slog.Logger
	tracer    oteltrace.Tracer
}

// NewClient creates a client for the given transport.
func NewClient(transport Transport, opts ...ClientOption) *Client {
	c := &Client{
		transport: transport,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke sends the prompt and drains the resulting stream exactly once, in
// arrival order. Chunk bytes are decoded incrementally into the answer,
// chunk citations are appended in order, and trace fragments are filed
// under their phase key. The aggregate is only returned once the stream is
// fully drained.
//
// Transport failures, at send time or mid-stream, are returned as
// *TransportError without retry.
func (c *Client) Invoke(ctx context.Context, req Request) (*AggregatedResponse, error) {
	ctx, span := c.tracer.Start(ctx, "agent.invoke",
		oteltrace.WithAttributes(
			attribute.String("agent.id", req.AgentID),
			attribute.String("agent.alias_id", req.AgentAliasID),
			attribute.String("agent.region", req.Region),
			attribute.String("agent.session_id", req.SessionID),
		))
	defer span.End()

	stream, err := c.transport.Send(ctx, req)
	if err != nil {
		err = asTransportError("invoke", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invoke failed")
		return nil, err
	}
	defer stream.Close()

	resp, err := c.drain(ctx, stream)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("agent.answer_bytes", len(resp.AnswerText)),
		attribute.Int("agent.citations", len(resp.Citations)),
		attribute.Int("agent.trace_fragments", resp.FragmentCount()),
	)
	c.logger.Debug("agent response aggregated",
		slog.String("session_id", req.SessionID),
		slog.Int("answer_bytes", len(resp.AnswerText)),
		slog.Int("citations", len(resp.Citations)),
		slog.Int("trace_fragments", resp.FragmentCount()),
	)
	return resp, nil
}

func (c *Client) drain(ctx context.Context, stream Stream) (*AggregatedResponse, error) {
	var (
		text      textDecoder
		citations []citation.Citation
		phases    = make(map[trace.PhaseKey][]trace.Fragment)
		reclass   = trace.NewReclassifier()
	)

	for {
		event, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, asTransportError("stream", err)
		}

		switch e := event.(type) {
		case ChunkEvent:
			text.Write(e.Bytes)
			citations = append(citations, e.Citations...)
		case *ChunkEvent:
			text.Write(e.Bytes)
			citations = append(citations, e.Citations...)
		case TraceEvent:
			key := reclass.Classify(e.Fragment.Wire)
			phases[key] = append(phases[key], e.Fragment)
		case *TraceEvent:
			key := reclass.Classify(e.Fragment.Wire)
			phases[key] = append(phases[key], e.Fragment)
		default:
			c.logger.Debug("ignoring unknown agent event", slog.Any("event", event))
		}
	}

	return &AggregatedResponse{
		AnswerText: text.String(),
		Citations:  citations,
		Trace:      phases,
	}, nil
}
