// Package upload turns an uploaded file into the text attached to a prompt.
// Only plain text and JSON are read; other supported formats are attached
// as a placeholder line.
package upload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultMaxSize is the default upload limit.
const DefaultMaxSize = 10 << 20

// Placeholders attached for formats whose content is not extracted.
const (
	PlaceholderPDF         = "[PDF uploaded - content not previewed]"
	PlaceholderDOCX        = "[DOCX uploaded - content not previewed]"
	PlaceholderSpreadsheet = "[Spreadsheet uploaded - content not previewed]"
	PlaceholderUnsupported = "[Unsupported file type]"
)

var (
	// ErrTooLarge is returned when the file exceeds the size limit.
	ErrTooLarge = errors.New("upload exceeds size limit")

	// ErrNoName is returned for uploads without a file name.
	ErrNoName = errors.New("upload has no file name")

	// ErrUnreadable is returned when a text or JSON upload cannot be read.
	ErrUnreadable = errors.New("upload content unreadable")
)

// Attachment is an extracted upload.
type Attachment struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`

	// Extracted is false when Content is a placeholder.
	Extracted bool `json:"extracted"`
}

// PromptSuffix returns the text appended to a prompt carrying this
// attachment.
func (a *Attachment) PromptSuffix() string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf("\n\n[Attached File: %s]\n%s", a.Name, a.Content)
}

// ComposePrompt appends the attachment, if any, to the prompt.
func ComposePrompt(prompt string, a *Attachment) string {
	return prompt + a.PromptSuffix()
}

// Extractor converts uploads into attachments.
type Extractor struct {
	MaxSize int64
}

// NewExtractor creates an extractor with the given size limit. A limit of
// zero or less selects DefaultMaxSize.
func NewExtractor(maxSize int64) *Extractor {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Extractor{MaxSize: maxSize}
}

// Extract reads data according to the file extension of name.
func (e *Extractor) Extract(name, mimeType string, data []byte) (*Attachment, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNoName
	}
	if int64(len(data)) > e.MaxSize {
		return nil, fmt.Errorf("%s: %w (%d > %d bytes)", name, ErrTooLarge, len(data), e.MaxSize)
	}

	a := &Attachment{Name: name, MimeType: mimeType}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%s: %w: not valid UTF-8 text", name, ErrUnreadable)
		}
		a.Content = string(data)
		a.Extracted = true
	case ".json":
		var buf bytes.Buffer
		if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
			return nil, fmt.Errorf("%s: %w: invalid JSON: %v", name, ErrUnreadable, err)
		}
		a.Content = buf.String()
		a.Extracted = true
	case ".pdf":
		a.Content = PlaceholderPDF
	case ".docx":
		a.Content = PlaceholderDOCX
	case ".xls", ".xlsx":
		a.Content = PlaceholderSpreadsheet
	default:
		a.Content = PlaceholderUnsupported
	}
	return a, nil
}
