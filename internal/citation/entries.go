package citation

// Entry pairs one retrieved reference with the answer part it supports.
type Entry struct {
	Number                int                    `json:"number"`
	GeneratedResponsePart *GeneratedResponsePart `json:"generatedResponsePart"`
	RetrievedReference    RetrievedReference     `json:"retrievedReference"`
}

// Entries flattens citations into one numbered entry per retrieved
// reference, using the same numbering as the footnotes built by Rewrite.
func Entries(citations []Citation) []Entry {
	entries := make([]Entry, 0, ReferenceCount(citations))
	num := 1
	for _, c := range citations {
		for _, ref := range c.RetrievedReferences {
			entries = append(entries, Entry{
				Number:                num,
				GeneratedResponsePart: c.GeneratedResponsePart,
				RetrievedReference:    ref,
			})
			num++
		}
	}
	return entries
}
