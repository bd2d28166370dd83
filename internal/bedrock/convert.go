package bedrock

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/tjfontaine/bedrock-agent-chat/internal/agent"
	"github.com/tjfontaine/bedrock-agent-chat/internal/citation"
	"github.com/tjfontaine/bedrock-agent-chat/internal/trace"
)

// convertEvent maps one SDK stream member to an agent event. Members other
// than chunks and the four displayed trace kinds are reported as not ok.
func convertEvent(ev types.ResponseStream) (agent.Event, bool) {
	switch v := ev.(type) {
	case *types.ResponseStreamMemberChunk:
		return agent.ChunkEvent{
			Bytes:     v.Value.Bytes,
			Citations: convertAttribution(v.Value.Attribution),
		}, true
	case *types.ResponseStreamMemberTrace:
		f, ok := convertTrace(v.Value.Trace)
		if !ok {
			return nil, false
		}
		return agent.TraceEvent{Fragment: f}, true
	default:
		return nil, false
	}
}

func convertTrace(t types.Trace) (trace.Fragment, bool) {
	switch v := t.(type) {
	case *types.TraceMemberGuardrailTrace:
		return trace.Fragment{
			Wire:    trace.WireGuardrail,
			TraceID: aws.ToString(v.Value.TraceId),
			Body:    marshalBody(v.Value),
		}, true
	case *types.TraceMemberPreProcessingTrace:
		return convertPreProcessing(v.Value), true
	case *types.TraceMemberOrchestrationTrace:
		return convertOrchestration(v.Value), true
	case *types.TraceMemberPostProcessingTrace:
		return convertPostProcessing(v.Value), true
	default:
		return trace.Fragment{}, false
	}
}

func convertPreProcessing(t types.PreProcessingTrace) trace.Fragment {
	switch v := t.(type) {
	case *types.PreProcessingTraceMemberModelInvocationInput:
		return infoFragment(trace.WirePreProcessing, trace.InfoModelInvocationInput, v.Value.TraceId, v.Value)
	case *types.PreProcessingTraceMemberModelInvocationOutput:
		return infoFragment(trace.WirePreProcessing, trace.InfoModelInvocationOutput, v.Value.TraceId, v.Value)
	default:
		return trace.Fragment{Wire: trace.WirePreProcessing}
	}
}

func convertOrchestration(t types.OrchestrationTrace) trace.Fragment {
	switch v := t.(type) {
	case *types.OrchestrationTraceMemberInvocationInput:
		return infoFragment(trace.WireOrchestration, trace.InfoInvocationInput, v.Value.TraceId, v.Value)
	case *types.OrchestrationTraceMemberModelInvocationInput:
		return infoFragment(trace.WireOrchestration, trace.InfoModelInvocationInput, v.Value.TraceId, v.Value)
	case *types.OrchestrationTraceMemberModelInvocationOutput:
		return infoFragment(trace.WireOrchestration, trace.InfoModelInvocationOutput, v.Value.TraceId, v.Value)
	case *types.OrchestrationTraceMemberObservation:
		return infoFragment(trace.WireOrchestration, trace.InfoObservation, v.Value.TraceId, v.Value)
	case *types.OrchestrationTraceMemberRationale:
		return infoFragment(trace.WireOrchestration, trace.InfoRationale, v.Value.TraceId, v.Value)
	default:
		return trace.Fragment{Wire: trace.WireOrchestration}
	}
}

func convertPostProcessing(t types.PostProcessingTrace) trace.Fragment {
	switch v := t.(type) {
	case *types.PostProcessingTraceMemberModelInvocationInput:
		return infoFragment(trace.WirePostProcessing, trace.InfoModelInvocationInput, v.Value.TraceId, v.Value)
	case *types.PostProcessingTraceMemberModelInvocationOutput:
		return infoFragment(trace.WirePostProcessing, trace.InfoModelInvocationOutput, v.Value.TraceId, v.Value)
	default:
		return trace.Fragment{Wire: trace.WirePostProcessing}
	}
}

// infoFragment builds a fragment holding a single info sub-object. A nil
// traceId leaves the fragment without infos so that grouping skips it.
func infoFragment(wire trace.WireName, info trace.InfoType, traceID *string, value any) trace.Fragment {
	f := trace.Fragment{
		Wire: wire,
		Body: marshalBody(map[string]any{string(info): value}),
	}
	if traceID != nil {
		f.Infos = []trace.Info{{Type: info, TraceID: *traceID}}
	}
	return f
}

// marshalBody renders v for display. Display is best effort: values that
// cannot be encoded yield a nil body.
func marshalBody(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func convertAttribution(a *types.Attribution) []citation.Citation {
	if a == nil || len(a.Citations) == 0 {
		return nil
	}
	out := make([]citation.Citation, 0, len(a.Citations))
	for _, c := range a.Citations {
		out = append(out, convertCitation(c))
	}
	return out
}

func convertCitation(c types.Citation) citation.Citation {
	out := citation.Citation{
		RetrievedReferences: make([]citation.RetrievedReference, 0, len(c.RetrievedReferences)),
	}

	if gp := c.GeneratedResponsePart; gp != nil && gp.TextResponsePart != nil {
		part := &citation.TextResponsePart{Text: aws.ToString(gp.TextResponsePart.Text)}
		if span := gp.TextResponsePart.Span; span != nil {
			part.Span = &citation.Span{
				Start: int(aws.ToInt32(span.Start)),
				End:   int(aws.ToInt32(span.End)),
			}
		}
		out.GeneratedResponsePart = &citation.GeneratedResponsePart{TextResponsePart: part}
	}

	for _, r := range c.RetrievedReferences {
		ref := citation.RetrievedReference{}
		if r.Content != nil {
			ref.Content = &citation.ReferenceContent{Text: aws.ToString(r.Content.Text)}
		}
		if r.Location != nil {
			loc := &citation.ReferenceLocation{Type: string(r.Location.Type)}
			if r.Location.S3Location != nil {
				loc.S3Location = &citation.S3Location{URI: r.Location.S3Location.Uri}
			}
			ref.Location = loc
		}
		if len(r.Metadata) > 0 {
			ref.Metadata = make(map[string]any, len(r.Metadata))
			for k, doc := range r.Metadata {
				if doc == nil {
					continue
				}
				var v any
				if err := doc.UnmarshalSmithyDocument(&v); err == nil {
					ref.Metadata[k] = v
				}
			}
		}
		out.RetrievedReferences = append(out.RetrievedReferences, ref)
	}
	return out
}
