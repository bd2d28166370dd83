// Package console is the terminal front-end: a line-oriented chat loop that
// renders answers as markdown and lays out a turn's trace step by step.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/tjfontaine/bedrock-agent-chat/internal/citation"
	"github.com/tjfontaine/bedrock-agent-chat/internal/trace"
)

var (
	accent = lipgloss.Color("#2196F3")
	muted  = lipgloss.Color("#8a8f98")
	danger = lipgloss.Color("#e53935")
)

type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	step    lipgloss.Style
	phase   lipgloss.Style
	empty   lipgloss.Style
	err     lipgloss.Style
	warn    lipgloss.Style
	prompt  lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1),
		section: lipgloss.NewStyle().Bold(true).Underline(true),
		step:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		phase:   lipgloss.NewStyle().Foreground(muted).Italic(true),
		empty:   lipgloss.NewStyle().Foreground(muted),
		err:     lipgloss.NewStyle().Bold(true).Foreground(danger),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107")),
		prompt:  lipgloss.NewStyle().Bold(true).Foreground(accent),
	}
}

// RendererOptions configures a Renderer.
type RendererOptions struct {
	// Width is the word-wrap width for answers. Defaults to 80.
	Width int

	// Style names a glamour style ("dark", "light", "notty"). Empty selects
	// one from the terminal background.
	Style string
}

// Renderer writes chat output to a terminal.
type Renderer struct {
	out    io.Writer
	md     *glamour.TermRenderer
	styles styles
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(out io.Writer, opts RendererOptions) (*Renderer, error) {
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	style := glamour.WithAutoStyle()
	if opts.Style != "" {
		style = glamour.WithStylePath(opts.Style)
	}
	md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return &Renderer{out: out, md: md, styles: defaultStyles()}, nil
}

// Title prints the chat banner.
func (r *Renderer) Title(title, icon string) {
	if icon != "" {
		title = icon + " " + title
	}
	fmt.Fprintln(r.out, r.styles.title.Render(title))
}

// Prompt returns the input prompt string.
func (r *Renderer) Prompt() string {
	return r.styles.prompt.Render("you> ")
}

// Answer renders an assistant answer. Markdown that fails to render is
// printed as-is.
func (r *Renderer) Answer(markdown string) {
	out, err := r.md.Render(markdown)
	if err != nil {
		fmt.Fprintln(r.out, markdown)
		return
	}
	fmt.Fprint(r.out, out)
}

// Trace prints each section with its steps titled "Trace Step N" and every
// fragment as indented JSON.
func (r *Renderer) Trace(sections []trace.Section) {
	if trace.StepCount(sections) == 0 {
		fmt.Fprintln(r.out, r.styles.empty.Render("No trace for the last turn."))
		return
	}
	for _, section := range sections {
		fmt.Fprintln(r.out, r.styles.section.Render(section.Title))
		if section.Empty {
			fmt.Fprintln(r.out, r.styles.empty.Render("  (none)"))
			continue
		}
		for _, phase := range section.Phases {
			for _, step := range phase.Steps {
				header := fmt.Sprintf("Trace Step %d", step.Number)
				fmt.Fprintf(r.out, "%s %s\n", r.styles.step.Render(header), r.styles.phase.Render(string(phase.Key)))
				for _, fragment := range step.Fragments {
					fmt.Fprintln(r.out, indentJSON(fragment))
				}
			}
		}
	}
}

// Citations prints the numbered references of the last turn.
func (r *Renderer) Citations(entries []citation.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(r.out, r.styles.empty.Render("No citations for the last turn."))
		return
	}
	for _, e := range entries {
		uri, ok := e.RetrievedReference.URI()
		if !ok {
			uri = "(no location)"
		}
		fmt.Fprintf(r.out, "%s %s\n", r.styles.step.Render(fmt.Sprintf("[%d]", e.Number)), uri)
		if e.RetrievedReference.Content != nil && e.RetrievedReference.Content.Text != "" {
			fmt.Fprintln(r.out, r.styles.empty.Render(indent(e.RetrievedReference.Content.Text, "    ")))
		}
	}
}

// Info prints a status line.
func (r *Renderer) Info(format string, args ...any) {
	fmt.Fprintln(r.out, r.styles.empty.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (r *Renderer) Warn(format string, args ...any) {
	fmt.Fprintln(r.out, r.styles.warn.Render(fmt.Sprintf(format, args...)))
}

// Error prints err.
func (r *Renderer) Error(err error) {
	fmt.Fprintln(r.out, r.styles.err.Render("error: ")+err.Error())
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "    ", "  ")
	if err != nil {
		return "    " + err.Error()
	}
	return "    " + string(b)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
