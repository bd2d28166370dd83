package agent

import (
	"context"
	"io"
)

// Transport sends a converse request to the remote agent.
type Transport interface {
	// Send starts the call and returns its event stream. Failures are
	// reported as *TransportError.
	Send(ctx context.Context, req Request) (Stream, error)
}

// Stream yields a turn's events in arrival order.
type Stream interface {
	// Next returns the next event, or io.EOF once the stream is drained.
	Next(ctx context.Context) (Event, error)

	Close() error
}

// SliceStream is a Stream over a fixed list of events, optionally ending
// with an error instead of io.EOF.
type SliceStream struct {
	Events []Event
	Err    error

	pos    int
	closed bool
}

// NewSliceStream returns a stream over events.
func NewSliceStream(events ...Event) *SliceStream {
	return &SliceStream{Events: events}
}

// Next returns the next event.
func (s *SliceStream) Next(ctx context.Context) (Event, error) {
	if s.pos < len(s.Events) {
		e := s.Events[s.pos]
		s.pos++
		return e, nil
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return nil, io.EOF
}

// Close marks the stream closed.
func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SliceStream) Closed() bool {
	return s.closed
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req Request) (Stream, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, req Request) (Stream, error) {
	return f(ctx, req)
}
