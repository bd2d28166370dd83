package trace

// infoTypesByPhase lists, per phase, the info types that identify a
// fragment's correlation id, in priority order. Guardrail phases have no
// entry: each guardrail fragment is its own step.
var infoTypesByPhase = map[PhaseKey][]InfoType{
	PhasePreProcessing: {
		InfoModelInvocationInput,
		InfoModelInvocationOutput,
	},
	PhaseOrchestration: {
		InfoInvocationInput,
		InfoModelInvocationInput,
		InfoModelInvocationOutput,
		InfoObservation,
		InfoRationale,
	},
	PhasePostProcessing: {
		InfoModelInvocationInput,
		InfoModelInvocationOutput,
		InfoObservation,
	},
}

// InfoTypes returns the info types consulted when grouping the phase, in
// priority order. It returns nil for phases whose fragments are not grouped
// by info type.
func InfoTypes(key PhaseKey) []InfoType {
	types := infoTypesByPhase[key]
	if types == nil {
		return nil
	}
	out := make([]InfoType, len(types))
	copy(out, types)
	return out
}

// Step is a cluster of fragments sharing a correlation id.
type Step struct {
	TraceID   string     `json:"traceId,omitempty"`
	Number    int        `json:"number,omitempty"`
	Fragments []Fragment `json:"fragments"`
}

// Group partitions the fragments of one phase into steps. Steps are
// returned in order of first occurrence; fragments keep their arrival order
// within a step. Fragments carrying none of the phase's info types are
// dropped. Numbers are left zero; Sections assigns them.
func Group(key PhaseKey, fragments []Fragment) []Step {
	types, grouped := infoTypesByPhase[key]
	if !grouped {
		steps := make([]Step, 0, len(fragments))
		for _, f := range fragments {
			steps = append(steps, Step{TraceID: f.TraceID, Fragments: []Fragment{f}})
		}
		return steps
	}

	var steps []Step
	index := make(map[string]int)
	for _, f := range fragments {
		traceID, ok := correlate(f, types)
		if !ok {
			continue
		}
		i, seen := index[traceID]
		if !seen {
			i = len(steps)
			index[traceID] = i
			steps = append(steps, Step{TraceID: traceID})
		}
		steps[i].Fragments = append(steps[i].Fragments, f)
	}
	return steps
}

// correlate returns the traceId of the first info type in types that the
// fragment carries.
func correlate(f Fragment, types []InfoType) (string, bool) {
	for _, t := range types {
		if info, ok := f.Info(t); ok {
			return info.TraceID, true
		}
	}
	return "", false
}
