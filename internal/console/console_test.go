package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/tjfontaine/bedrock-agent-chat/internal/agent"
	"github.com/tjfontaine/bedrock-agent-chat/internal/citation"
	"github.com/tjfontaine/bedrock-agent-chat/internal/session"
	"github.com/tjfontaine/bedrock-agent-chat/internal/trace"
	"github.com/tjfontaine/bedrock-agent-chat/internal/upload"
)

type fakeInvoker struct {
	resp    *agent.AggregatedResponse
	err     error
	prompts []string
}

func (f *fakeInvoker) Invoke(ctx context.Context, req agent.Request) (*agent.AggregatedResponse, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newTestChat(t *testing.T, inv session.Invoker) (*Chat, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	r, err := NewRenderer(&out, RendererOptions{Style: "notty"})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := session.NewManager(inv, session.AgentConfig{AgentID: "a", AgentAliasID: "TSTALIASID", Region: "us-east-1"},
		session.WithLogger(logger))
	sess, err := mgr.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return NewChat(sess, r, upload.NewExtractor(0), logger), &out
}

func uriRef(uri string) citation.RetrievedReference {
	return citation.RetrievedReference{
		Content:  &citation.ReferenceContent{Text: "Paris is the capital and largest city of France."},
		Location: &citation.ReferenceLocation{Type: "S3", S3Location: &citation.S3Location{URI: &uri}},
	}
}

func TestChat_ConverseAndInspect(t *testing.T) {
	inv := &fakeInvoker{resp: &agent.AggregatedResponse{
		AnswerText: "Paris is the **capital**%[1]%.",
		Citations:  []citation.Citation{{RetrievedReferences: []citation.RetrievedReference{uriRef("s3://kb/france.txt")}}},
		Trace: map[trace.PhaseKey][]trace.Fragment{
			trace.PhaseOrchestration: {{
				Wire:  trace.WireOrchestration,
				Infos: []trace.Info{{Type: trace.InfoRationale, TraceID: "t1"}},
				Body:  []byte(`{"rationale":{"text":"look it up","traceId":"t1"}}`),
			}},
		},
	}}
	chat, out := newTestChat(t, inv)
	ctx := context.Background()

	if err := chat.Exec(ctx, "What is the capital of France?"); err != nil {
		t.Fatalf("Exec(prompt) error = %v", err)
	}
	if !strings.Contains(out.String(), "Paris") || !strings.Contains(out.String(), "s3://kb/france.txt") {
		t.Errorf("answer output = %q", out.String())
	}

	out.Reset()
	if err := chat.Exec(ctx, "/trace"); err != nil {
		t.Fatalf("Exec(/trace) error = %v", err)
	}
	traceOut := out.String()
	for _, want := range []string{"Pre-Processing", "Orchestration", "Post-Processing", "Trace Step 1", `"rationale"`, "look it up"} {
		if !strings.Contains(traceOut, want) {
			t.Errorf("trace output missing %q:\n%s", want, traceOut)
		}
	}

	out.Reset()
	if err := chat.Exec(ctx, "/citations"); err != nil {
		t.Fatalf("Exec(/citations) error = %v", err)
	}
	if !strings.Contains(out.String(), "[1]") || !strings.Contains(out.String(), "largest city") {
		t.Errorf("citations output = %q", out.String())
	}
}

func TestChat_AttachDetach(t *testing.T) {
	inv := &fakeInvoker{resp: &agent.AggregatedResponse{AnswerText: "ok"}}
	chat, out := newTestChat(t, inv)
	chat.ReadFile = func(path string) ([]byte, error) {
		if path == "/tmp/alerts.txt" {
			return []byte("alert 1"), nil
		}
		return nil, os.ErrNotExist
	}
	ctx := context.Background()

	if err := chat.Exec(ctx, "/attach /tmp/alerts.txt"); err != nil {
		t.Fatalf("Exec(/attach) error = %v", err)
	}
	if !strings.Contains(out.String(), "Attached alerts.txt") {
		t.Errorf("attach output = %q", out.String())
	}
	chat.Exec(ctx, "triage")
	chat.Exec(ctx, "/detach")
	chat.Exec(ctx, "thanks")

	if inv.prompts[0] != "triage\n\n[Attached File: alerts.txt]\nalert 1" {
		t.Errorf("prompt with attachment = %q", inv.prompts[0])
	}
	if inv.prompts[1] != "thanks" {
		t.Errorf("prompt after detach = %q", inv.prompts[1])
	}

	if err := chat.Exec(ctx, "/attach /missing"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Exec(/attach missing) error = %v, want ErrNotExist", err)
	}
	if err := chat.Exec(ctx, "/attach"); err == nil {
		t.Error("Exec(/attach) without path error = nil")
	}
}

func TestChat_Commands(t *testing.T) {
	chat, out := newTestChat(t, &fakeInvoker{resp: &agent.AggregatedResponse{AnswerText: "ok"}})
	ctx := context.Background()

	if err := chat.Exec(ctx, "/quit"); !errors.Is(err, ErrQuit) {
		t.Errorf("Exec(/quit) error = %v, want ErrQuit", err)
	}
	if err := chat.Exec(ctx, "/bogus"); err == nil {
		t.Error("Exec(/bogus) error = nil, want unknown command")
	}
	if err := chat.Exec(ctx, "   "); err != nil {
		t.Errorf("Exec(blank) error = %v", err)
	}

	out.Reset()
	chat.Exec(ctx, "/trace")
	if !strings.Contains(out.String(), "No trace") {
		t.Errorf("trace before any turn = %q", out.String())
	}

	chat.Exec(ctx, "hello")
	if err := chat.Exec(ctx, "/reset"); err != nil {
		t.Fatalf("Exec(/reset) error = %v", err)
	}
	if got := len(chat.session.Messages()); got != 0 {
		t.Errorf("Messages after reset = %d, want 0", got)
	}
}

func TestChat_TransportErrorIsShown(t *testing.T) {
	inv := &fakeInvoker{err: agent.NewTransportError(agent.ErrorTypeNetwork, "invoke", errors.New("connection reset"))}
	chat, _ := newTestChat(t, inv)

	in := strings.NewReader("hello\n/quit\n")
	var term bytes.Buffer
	if err := chat.Run(context.Background(), in, &term); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Renderer output shares the buffer given to newTestChat, so check the
	// session instead: the turn was aborted without an answer.
	msgs := chat.session.Messages()
	if len(msgs) != 1 || msgs[0].Role != session.RoleUser {
		t.Errorf("Messages = %+v, want only the user prompt", msgs)
	}
}

func TestChat_RunStopsAtEOF(t *testing.T) {
	chat, _ := newTestChat(t, &fakeInvoker{resp: &agent.AggregatedResponse{AnswerText: "ok"}})

	var term bytes.Buffer
	if err := chat.Run(context.Background(), strings.NewReader("hi\n"), &term); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(term.String(), "you> ") {
		t.Errorf("prompt not written: %q", term.String())
	}
}
