package citation

import (
	"fmt"
	"regexp"
	"strings"
)

var markerPattern = regexp.MustCompile(`%\[(\d+)\]%`)

// MalformedCitationError reports a retrieved reference without a
// location.s3Location.uri. Citation and Reference are zero-based indexes.
type MalformedCitationError struct {
	Citation  int
	Reference int
}

func (e *MalformedCitationError) Error() string {
	return fmt.Sprintf("citation %d reference %d: missing location.s3Location.uri", e.Citation, e.Reference)
}

// Result is the output of Rewrite.
type Result struct {
	// Text is the answer with inline markers rewritten.
	Text string

	// Footnotes holds one "[n] <uri>" line per retrieved reference.
	Footnotes []string
}

// FootnoteBlock returns the footnote lines joined by newlines.
func (r Result) FootnoteBlock() string {
	return strings.Join(r.Footnotes, "\n")
}

// Markdown returns the rewritten text followed by the footnote block.
func (r Result) Markdown() string {
	if len(r.Footnotes) == 0 {
		return r.Text
	}
	return r.Text + "\n" + r.FootnoteBlock()
}

// RewriteMarkers replaces every %[d]% marker with <sup>[d]</sup>. The digits
// are the agent's own and are kept as-is.
func RewriteMarkers(text string) string {
	return markerPattern.ReplaceAllString(text, "<sup>[$1]</sup>")
}

// Rewrite turns the inline markers of answer into footnote references and
// lists one footnote per retrieved reference, numbered from 1 in
// citation-then-reference order. With no citations the answer is returned
// untouched.
//
// Footnote numbers are computed locally and are not reconciled with the
// marker digits. When a reference lacks its URI, Rewrite returns a
// *MalformedCitationError together with a Result whose Text is still the
// rewritten answer.
func Rewrite(answer string, citations []Citation) (Result, error) {
	if len(citations) == 0 {
		return Result{Text: answer}, nil
	}

	result := Result{Text: RewriteMarkers(answer)}
	num := 1
	for ci, c := range citations {
		for ri, ref := range c.RetrievedReferences {
			uri, ok := ref.URI()
			if !ok {
				return Result{Text: result.Text}, &MalformedCitationError{Citation: ci, Reference: ri}
			}
			result.Footnotes = append(result.Footnotes, fmt.Sprintf("[%d] %s", num, uri))
			num++
		}
	}
	return result, nil
}
