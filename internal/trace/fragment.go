// Package trace reshapes the flat trace fragments emitted by a Bedrock agent
// into phase-keyed, step-ordered structures for display.
package trace

import (
	"encoding/json"
)

// WireName is the name a trace fragment carries on the wire.
type WireName string

const (
	WireGuardrail      WireName = "guardrailTrace"
	WirePreProcessing  WireName = "preProcessingTrace"
	WireOrchestration  WireName = "orchestrationTrace"
	WirePostProcessing WireName = "postProcessingTrace"
)

// Known reports whether the wire name is one of the four fragment kinds.
func (w WireName) Known() bool {
	switch w {
	case WireGuardrail, WirePreProcessing, WireOrchestration, WirePostProcessing:
		return true
	}
	return false
}

// PhaseKey is the key a fragment is filed under after reclassification.
// Guardrail fragments split into a pre and a post key by order of arrival.
type PhaseKey string

const (
	PhasePreGuardrail   PhaseKey = "preGuardrailTrace"
	PhasePreProcessing  PhaseKey = "preProcessingTrace"
	PhaseOrchestration  PhaseKey = "orchestrationTrace"
	PhasePostProcessing PhaseKey = "postProcessingTrace"
	PhasePostGuardrail  PhaseKey = "postGuardrailTrace"
)

// InfoType names the info sub-object wrapped by a non-guardrail fragment.
type InfoType string

const (
	InfoModelInvocationInput  InfoType = "modelInvocationInput"
	InfoModelInvocationOutput InfoType = "modelInvocationOutput"
	InfoObservation           InfoType = "observation"
	InfoRationale             InfoType = "rationale"
	InfoInvocationInput       InfoType = "invocationInput"
)

// Info is one info sub-object of a fragment together with its correlation id.
type Info struct {
	Type    InfoType `json:"type"`
	TraceID string   `json:"traceId"`
}

// Fragment is one named sub-object of a trace event.
type Fragment struct {
	Wire WireName

	// TraceID is the fragment's own correlation id. Only guardrail
	// fragments carry one; it may be empty.
	TraceID string

	// Infos lists the info sub-objects present on the fragment, in the
	// order the transport saw them.
	Infos []Info

	// Body is the fragment payload as JSON, kept for display.
	Body json.RawMessage
}

// Info returns the info of the given type, if present.
func (f Fragment) Info(t InfoType) (Info, bool) {
	for _, info := range f.Infos {
		if info.Type == t {
			return info, true
		}
	}
	return Info{}, false
}

// MarshalJSON renders the fragment as its wire payload.
func (f Fragment) MarshalJSON() ([]byte, error) {
	if len(f.Body) > 0 {
		return f.Body, nil
	}
	out := map[string]any{}
	if f.TraceID != "" {
		out["traceId"] = f.TraceID
	}
	for _, info := range f.Infos {
		out[string(info.Type)] = map[string]string{"traceId": info.TraceID}
	}
	return json.Marshal(out)
}
