package trace

// Section titles, in display order.
const (
	SectionPreProcessing  = "Pre-Processing"
	SectionOrchestration  = "Orchestration"
	SectionPostProcessing = "Post-Processing"
)

var sectionLayout = []struct {
	title string
	keys  []PhaseKey
}{
	{SectionPreProcessing, []PhaseKey{PhasePreGuardrail, PhasePreProcessing}},
	{SectionOrchestration, []PhaseKey{PhaseOrchestration}},
	{SectionPostProcessing, []PhaseKey{PhasePostProcessing, PhasePostGuardrail}},
}

// Phase holds the grouped steps of one phase key.
type Phase struct {
	Key   PhaseKey `json:"key"`
	Steps []Step   `json:"steps"`
}

// Section is one display section of a turn's trace.
type Section struct {
	Title  string  `json:"title"`
	Phases []Phase `json:"phases"`

	// Empty is true when none of the section's phase keys are present.
	Empty bool `json:"empty"`
}

// Steps returns the section's steps across its phases, in display order.
func (s Section) Steps() []Step {
	var out []Step
	for _, p := range s.Phases {
		out = append(out, p.Steps...)
	}
	return out
}

// Sections groups a turn's trace into the fixed Pre-Processing,
// Orchestration and Post-Processing sections. Step numbers start at 1 and
// run across all sections without resetting.
func Sections(phases map[PhaseKey][]Fragment) []Section {
	sections := make([]Section, 0, len(sectionLayout))
	number := 1
	for _, layout := range sectionLayout {
		section := Section{Title: layout.title, Phases: []Phase{}}
		for _, key := range layout.keys {
			fragments, ok := phases[key]
			if !ok {
				continue
			}
			steps := Group(key, fragments)
			if steps == nil {
				steps = []Step{}
			}
			for i := range steps {
				steps[i].Number = number
				number++
			}
			section.Phases = append(section.Phases, Phase{Key: key, Steps: steps})
		}
		section.Empty = len(section.Phases) == 0
		sections = append(sections, section)
	}
	return sections
}

// StepCount returns the number of steps across sections.
func StepCount(sections []Section) int {
	n := 0
	for _, s := range sections {
		for _, p := range s.Phases {
			n += len(p.Steps)
		}
	}
	return n
}
