package trace

// Reclassifier maps wire names to phase keys for a single turn. The first
// guardrail fragment of a turn is pre-processing, every later one is filed
// as post-processing. Use a fresh Reclassifier per turn.
type Reclassifier struct {
	guardrailSeen bool
}

// NewReclassifier returns a Reclassifier with the guardrail flag unset.
func NewReclassifier() *Reclassifier {
	return &Reclassifier{}
}

// Classify returns the phase key for a fragment with the given wire name.
// It depends only on the wire name and on whether a guardrail fragment was
// already classified.
//
// A third or later guardrail fragment is clamped to PhasePostGuardrail.
func (r *Reclassifier) Classify(wire WireName) PhaseKey {
	if wire != WireGuardrail {
		return PhaseKey(wire)
	}
	if !r.guardrailSeen {
		r.guardrailSeen = true
		return PhasePreGuardrail
	}
	return PhasePostGuardrail
}

// Reset clears the guardrail flag.
func (r *Reclassifier) Reset() {
	r.guardrailSeen = false
}
