// Package citation rewrites inline citation markers in agent answers into
// footnote references and builds the matching footnote list.
package citation

// Citation attributes a part of the generated answer to retrieved sources.
type Citation struct {
	GeneratedResponsePart *GeneratedResponsePart `json:"generatedResponsePart,omitempty"`
	RetrievedReferences   []RetrievedReference   `json:"retrievedReferences"`
}

// GeneratedResponsePart is the answer span a citation covers.
type GeneratedResponsePart struct {
	TextResponsePart *TextResponsePart `json:"textResponsePart,omitempty"`
}

// TextResponsePart is a span of answer text.
type TextResponsePart struct {
	Text string `json:"text"`
	Span *Span  `json:"span,omitempty"`
}

// Span is a character range in the answer.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// RetrievedReference is one source backing a citation.
type RetrievedReference struct {
	Content  *ReferenceContent  `json:"content,omitempty"`
	Location *ReferenceLocation `json:"location,omitempty"`
	Metadata map[string]any     `json:"metadata,omitempty"`
}

// ReferenceContent is the retrieved source text.
type ReferenceContent struct {
	Text string `json:"text"`
}

// ReferenceLocation locates a retrieved source.
type ReferenceLocation struct {
	Type       string      `json:"type,omitempty"`
	S3Location *S3Location `json:"s3Location,omitempty"`
}

// S3Location is an S3 object location. URI is nil when the service omitted it.
type S3Location struct {
	URI *string `json:"uri,omitempty"`
}

// URI returns the reference's location.s3Location.uri.
func (r RetrievedReference) URI() (string, bool) {
	if r.Location == nil || r.Location.S3Location == nil || r.Location.S3Location.URI == nil {
		return "", false
	}
	return *r.Location.S3Location.URI, true
}

// ReferenceCount returns the number of retrieved references across citations.
func ReferenceCount(citations []Citation) int {
	n := 0
	for _, c := range citations {
		n += len(c.RetrievedReferences)
	}
	return n
}
