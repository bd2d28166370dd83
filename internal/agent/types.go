// Package agent invokes a remote Bedrock agent and aggregates its streamed
// response into a single answer with citations and a phase-keyed trace.
package agent

import (
	"github.com/tjfontaine/bedrock-agent-chat/internal/citation"
	"github.com/tjfontaine/bedrock-agent-chat/internal/trace"
)

// Request identifies the agent and session for one converse call.
type Request struct {
	AgentID      string
	AgentAliasID string
	Region       string
	SessionID    string
	Prompt       string

	// EnableTrace asks the service to emit trace events.
	EnableTrace bool
}

// Event is one unit of the agent's response stream. It is either a
// ChunkEvent or a TraceEvent.
type Event interface {
	isEvent()
}

// ChunkEvent carries a slice of answer bytes. The bytes may end in the
// middle of a multi-byte character.
type ChunkEvent struct {
	Bytes     []byte
	Citations []citation.Citation
}

// TraceEvent carries one trace fragment.
type TraceEvent struct {
	Fragment trace.Fragment
}

func (ChunkEvent) isEvent() {}
func (TraceEvent) isEvent() {}

// AggregatedResponse is the result of draining one turn's event stream.
type AggregatedResponse struct {
	AnswerText string
	Citations  []citation.Citation
	Trace      map[trace.PhaseKey][]trace.Fragment
}

// FragmentCount returns the number of trace fragments across phases.
func (r *AggregatedResponse) FragmentCount() int {
	n := 0
	for _, fragments := range r.Trace {
		n += len(fragments)
	}
	return n
}
