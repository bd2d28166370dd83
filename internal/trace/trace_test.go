package trace

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func orch(info InfoType, traceID string) Fragment {
	return Fragment{Wire: WireOrchestration, Infos: []Info{{Type: info, TraceID: traceID}}}
}

func guardrail(traceID string) Fragment {
	return Fragment{Wire: WireGuardrail, TraceID: traceID}
}

func stepIDs(steps []Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.TraceID
	}
	return ids
}

// =============================================================================
// Reclassifier
// =============================================================================

func TestReclassifier_Classify(t *testing.T) {
	tests := []struct {
		name  string
		wires []WireName
		want  []PhaseKey
	}{
		{
			name:  "single guardrail is pre",
			wires: []WireName{WireGuardrail},
			want:  []PhaseKey{PhasePreGuardrail},
		},
		{
			name:  "second guardrail is post",
			wires: []WireName{WireGuardrail, WireOrchestration, WireGuardrail},
			want:  []PhaseKey{PhasePreGuardrail, PhaseOrchestration, PhasePostGuardrail},
		},
		{
			// Documented limitation: a third guardrail fragment is clamped.
			name:  "third guardrail clamps to post",
			wires: []WireName{WireGuardrail, WireGuardrail, WireGuardrail},
			want:  []PhaseKey{PhasePreGuardrail, PhasePostGuardrail, PhasePostGuardrail},
		},
		{
			name:  "other wire names pass through",
			wires: []WireName{WirePreProcessing, WireOrchestration, WirePostProcessing},
			want:  []PhaseKey{PhasePreProcessing, PhaseOrchestration, PhasePostProcessing},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReclassifier()
			var got []PhaseKey
			for _, w := range tt.wires {
				got = append(got, r.Classify(w))
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReclassifier_Reset(t *testing.T) {
	r := NewReclassifier()
	r.Classify(WireGuardrail)
	r.Reset()
	if got := r.Classify(WireGuardrail); got != PhasePreGuardrail {
		t.Errorf("Classify() after Reset = %v, want %v", got, PhasePreGuardrail)
	}
}

// =============================================================================
// Group
// =============================================================================

func TestGroup_NonConsecutiveTraceIDsShareStep(t *testing.T) {
	fragments := []Fragment{
		orch(InfoModelInvocationInput, "t1"),
		orch(InfoModelInvocationInput, "t2"),
		orch(InfoRationale, "t1"),
		orch(InfoObservation, "t2"),
	}

	steps := Group(PhaseOrchestration, fragments)

	if diff := cmp.Diff([]string{"t1", "t2"}, stepIDs(steps)); diff != "" {
		t.Fatalf("step order mismatch (-want +got):\n%s", diff)
	}
	want := []Fragment{fragments[0], fragments[2]}
	if diff := cmp.Diff(want, steps[0].Fragments); diff != "" {
		t.Errorf("step t1 fragments mismatch (-want +got):\n%s", diff)
	}
}

func TestGroup_PriorityOrder(t *testing.T) {
	// invocationInput outranks modelInvocationInput in orchestration.
	f := Fragment{
		Wire: WireOrchestration,
		Infos: []Info{
			{Type: InfoModelInvocationInput, TraceID: "model"},
			{Type: InfoInvocationInput, TraceID: "invoke"},
		},
	}

	steps := Group(PhaseOrchestration, []Fragment{f})
	if len(steps) != 1 || steps[0].TraceID != "invoke" {
		t.Errorf("Group() = %v, want single step keyed invoke", stepIDs(steps))
	}
}

func TestGroup_DropsUnknownInfoTypes(t *testing.T) {
	fragments := []Fragment{
		{Wire: WirePreProcessing, Infos: []Info{{Type: InfoRationale, TraceID: "r"}}},
		{Wire: WirePreProcessing},
		{Wire: WirePreProcessing, Infos: []Info{{Type: InfoModelInvocationOutput, TraceID: "p1"}}},
	}

	steps := Group(PhasePreProcessing, fragments)
	if diff := cmp.Diff([]string{"p1"}, stepIDs(steps)); diff != "" {
		t.Errorf("Group() mismatch (-want +got):\n%s", diff)
	}
}

func TestGroup_PostProcessingObservation(t *testing.T) {
	fragments := []Fragment{
		{Wire: WirePostProcessing, Infos: []Info{{Type: InfoObservation, TraceID: "o1"}}},
		{Wire: WirePostProcessing, Infos: []Info{{Type: InfoRationale, TraceID: "x"}}},
	}

	steps := Group(PhasePostProcessing, fragments)
	if diff := cmp.Diff([]string{"o1"}, stepIDs(steps)); diff != "" {
		t.Errorf("Group() mismatch (-want +got):\n%s", diff)
	}
}

func TestGroup_GuardrailFragmentsAreSingletons(t *testing.T) {
	fragments := []Fragment{guardrail("g1"), guardrail(""), guardrail("g1")}

	steps := Group(PhasePreGuardrail, fragments)
	if len(steps) != 3 {
		t.Fatalf("Group() returned %d steps, want 3", len(steps))
	}
	for i, s := range steps {
		if len(s.Fragments) != 1 {
			t.Errorf("step %d has %d fragments, want 1", i, len(s.Fragments))
		}
	}
	if steps[1].TraceID != "" {
		t.Errorf("step 1 TraceID = %q, want empty", steps[1].TraceID)
	}
}

func TestGroup_Idempotent(t *testing.T) {
	fragments := []Fragment{
		orch(InfoModelInvocationInput, "a"),
		orch(InfoInvocationInput, "b"),
		orch(InfoObservation, "a"),
		orch(InfoRationale, "c"),
		orch(InfoModelInvocationOutput, "b"),
	}

	first := Group(PhaseOrchestration, fragments)

	var flattened []Fragment
	for _, s := range first {
		flattened = append(flattened, s.Fragments...)
	}
	second := Group(PhaseOrchestration, flattened)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("regrouping changed partition (-first +second):\n%s", diff)
	}
}

func TestInfoTypes(t *testing.T) {
	if InfoTypes(PhasePreGuardrail) != nil {
		t.Error("InfoTypes(preGuardrailTrace) should be nil")
	}
	got := InfoTypes(PhasePreProcessing)
	got[0] = InfoRationale
	if InfoTypes(PhasePreProcessing)[0] != InfoModelInvocationInput {
		t.Error("InfoTypes() must return a copy")
	}
}

// =============================================================================
// Sections
// =============================================================================

func TestSections_NumberingSpansPhases(t *testing.T) {
	phases := map[PhaseKey][]Fragment{
		PhasePostGuardrail: {guardrail("g2")},
		PhaseOrchestration: {
			orch(InfoModelInvocationInput, "t1"),
			orch(InfoModelInvocationInput, "t2"),
			orch(InfoObservation, "t1"),
		},
		PhasePreGuardrail: {guardrail("g1")},
		PhasePreProcessing: {
			{Wire: WirePreProcessing, Infos: []Info{{Type: InfoModelInvocationInput, TraceID: "p"}}},
		},
	}

	sections := Sections(phases)

	if len(sections) != 3 {
		t.Fatalf("Sections() returned %d sections, want 3", len(sections))
	}
	titles := []string{sections[0].Title, sections[1].Title, sections[2].Title}
	if diff := cmp.Diff([]string{SectionPreProcessing, SectionOrchestration, SectionPostProcessing}, titles); diff != "" {
		t.Errorf("section titles mismatch (-want +got):\n%s", diff)
	}

	type numbered struct {
		ID     string
		Number int
	}
	var got []numbered
	for _, s := range sections {
		for _, step := range s.Steps() {
			got = append(got, numbered{step.TraceID, step.Number})
		}
	}
	want := []numbered{{"g1", 1}, {"p", 2}, {"t1", 3}, {"t2", 4}, {"g2", 5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("step numbering mismatch (-want +got):\n%s", diff)
	}
	if n := StepCount(sections); n != 5 {
		t.Errorf("StepCount() = %d, want 5", n)
	}
}

func TestSections_EmptySections(t *testing.T) {
	sections := Sections(map[PhaseKey][]Fragment{
		PhaseOrchestration: {orch(InfoRationale, "t1")},
	})

	if !sections[0].Empty || sections[1].Empty || !sections[2].Empty {
		t.Errorf("Empty flags = %v/%v/%v, want true/false/true",
			sections[0].Empty, sections[1].Empty, sections[2].Empty)
	}
	if sections[1].Phases[0].Steps[0].Number != 1 {
		t.Errorf("first step number = %d, want 1", sections[1].Phases[0].Steps[0].Number)
	}
}

func TestSections_PresentKeyWithoutStepsIsNotEmpty(t *testing.T) {
	sections := Sections(map[PhaseKey][]Fragment{
		PhasePostProcessing: {{Wire: WirePostProcessing}},
	})
	if sections[2].Empty {
		t.Error("Post-Processing should not be empty when its key is present")
	}
	if n := StepCount(sections); n != 0 {
		t.Errorf("StepCount() = %d, want 0", n)
	}

	data, err := json.Marshal(sections[2].Phases[0])
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if want := `{"key":"postProcessingTrace","steps":[]}`; string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

// =============================================================================
// Fragment
// =============================================================================

func TestFragment_MarshalJSON(t *testing.T) {
	body := json.RawMessage(`{"rationale":{"traceId":"t1","text":"thinking"}}`)
	f := Fragment{Wire: WireOrchestration, Infos: []Info{{Type: InfoRationale, TraceID: "t1"}}, Body: body}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != string(body) {
		t.Errorf("Marshal() = %s, want %s", data, body)
	}

	data, err = json.Marshal(Fragment{Wire: WireGuardrail, TraceID: "g"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"traceId":"g"}` {
		t.Errorf("Marshal() = %s, want {\"traceId\":\"g\"}", data)
	}
}
