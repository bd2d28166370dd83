// Package session keeps chat sessions with a Bedrock agent: message
// history, the latest turn's citations and trace, and an optional attached
// file that is appended to every prompt.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/bedrock-agent-chat/internal/agent"
	"github.com/tjfontaine/bedrock-agent-chat/internal/citation"
	"github.com/tjfontaine/bedrock-agent-chat/internal/tokens"
	"github.com/tjfontaine/bedrock-agent-chat/internal/trace"
	"github.com/tjfontaine/bedrock-agent-chat/internal/upload"
)

var (
	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = errors.New("session not found")

	// ErrTurnInProgress is returned when a session is already converting a
	// prompt.
	ErrTurnInProgress = errors.New("turn already in progress")

	// ErrEmptyPrompt is returned for blank prompts.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a session's history. Assistant content is the
// rendered markdown including footnotes.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Invoker runs one converse call. *agent.Client implements it.
type Invoker interface {
	Invoke(ctx context.Context, req agent.Request) (*agent.AggregatedResponse, error)
}

// AgentConfig identifies the agent sessions talk to.
type AgentConfig struct {
	AgentID      string
	AgentAliasID string
	Region       string
	EnableTrace  bool
}

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	Turn int `json:"turn"`

	// Answer is the markdown appended to the history.
	Answer    string   `json:"answer"`
	Text      string   `json:"text"`
	Footnotes []string `json:"footnotes"`

	Citations []citation.Entry `json:"citations"`
	Sections  []trace.Section  `json:"sections"`

	PromptTokens int `json:"promptTokens"`

	// CitationErr is set when footnotes could not be rendered. The answer
	// text is still present.
	CitationErr   error  `json:"-"`
	CitationError string `json:"citationError,omitempty"`
}

// Session is one conversation. It is safe for concurrent use; only one turn
// runs at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	manager *Manager

	mu             sync.Mutex
	agentSessionID string
	messages       []Message
	citations      []citation.Citation
	trace          map[trace.PhaseKey][]trace.Fragment
	attachment     *upload.Attachment
	turns          int
	busy           bool
	updatedAt      time.Time
}

func newSession(m *Manager) *Session {
	now := time.Now()
	return &Session{
		ID:             uuid.New().String(),
		CreatedAt:      now,
		manager:        m,
		agentSessionID: uuid.New().String(),
		messages:       []Message{},
		updatedAt:      now,
	}
}

// AgentSessionID returns the id sent to the agent. It changes on Reset.
func (s *Session) AgentSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentSessionID
}

// Messages returns a copy of the history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// UpdatedAt returns the time of the last change.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Citations returns the latest turn's citations as numbered entries.
func (s *Session) Citations() []citation.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return citation.Entries(s.citations)
}

// Sections returns the latest turn's trace grouped into display sections.
func (s *Session) Sections() []trace.Section {
	s.mu.Lock()
	phases := s.trace
	s.mu.Unlock()
	return trace.Sections(phases)
}

// Attach sets the file appended to subsequent prompts.
func (s *Session) Attach(a *upload.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachment = a
	s.updatedAt = time.Now()
}

// Detach removes the attached file.
func (s *Session) Detach() {
	s.Attach(nil)
}

// Attachment returns the attached file, or nil.
func (s *Session) Attachment() *upload.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachment
}

// Busy reports whether a turn is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Reset clears the history, citations, trace and attachment and starts a
// new agent session.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrTurnInProgress
	}
	s.agentSessionID = uuid.New().String()
	s.messages = []Message{}
	s.citations = nil
	s.trace = nil
	s.attachment = nil
	s.turns = 0
	s.updatedAt = time.Now()
	return nil
}

// Converse sends prompt, with the attached file if any, to the agent and
// records the answer. A transport failure aborts the turn: the user message
// stays in the history but no assistant message is added and the previous
// citations and trace are kept.
func (s *Session) Converse(ctx context.Context, prompt string) (*TurnResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrTurnInProgress
	}
	s.busy = true
	s.turns++
	turn := s.turns
	s.messages = append(s.messages, Message{Role: RoleUser, Content: prompt, CreatedAt: time.Now()})
	composed := upload.ComposePrompt(prompt, s.attachment)
	agentSessionID := s.agentSessionID
	s.updatedAt = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	m := s.manager
	logger := m.logger.With("session_id", s.ID, "turn", turn)

	promptTokens, estimated := m.counter.Count(composed)

	resp, err := m.invoker.Invoke(ctx, agent.Request{
		AgentID:      m.agent.AgentID,
		AgentAliasID: m.agent.AgentAliasID,
		Region:       m.agent.Region,
		SessionID:    agentSessionID,
		Prompt:       composed,
		EnableTrace:  m.agent.EnableTrace,
	})
	if err != nil {
		logger.Error("turn failed", "error", err, "prompt_tokens", promptTokens)
		return nil, err
	}

	answer := UnwrapAnswer(resp.AnswerText)
	rewritten, citeErr := citation.Rewrite(answer, resp.Citations)
	if citeErr != nil {
		logger.Warn("failed to render citations", "error", citeErr)
	}
	markdown := rewritten.Markdown()

	s.mu.Lock()
	s.messages = append(s.messages, Message{Role: RoleAssistant, Content: markdown, CreatedAt: time.Now()})
	s.citations = resp.Citations
	s.trace = resp.Trace
	s.updatedAt = time.Now()
	s.mu.Unlock()

	result := &TurnResult{
		Turn:         turn,
		Answer:       markdown,
		Text:         rewritten.Text,
		Footnotes:    rewritten.Footnotes,
		Citations:    citation.Entries(resp.Citations),
		Sections:     trace.Sections(resp.Trace),
		PromptTokens: promptTokens,
		CitationErr:  citeErr,
	}
	if citeErr != nil {
		result.CitationError = citeErr.Error()
	}

	logger.Info("turn completed",
		"citations", len(resp.Citations),
		"references", citation.ReferenceCount(resp.Citations),
		"trace_fragments", resp.FragmentCount(),
		"trace_steps", trace.StepCount(result.Sections),
		"prompt_tokens", promptTokens,
		"prompt_tokens_estimated", estimated,
	)
	return result, nil
}

// UnwrapAnswer returns the "result" member when answer is a JSON object
// carrying both "instruction" and "result". A string result is returned
// as-is, any other result as its JSON text. Anything else is returned
// unchanged. Raw control characters inside string literals are accepted,
// since agents often emit multi-line results without escaping them.
func UnwrapAnswer(answer string) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(escapeControlChars(answer), &obj); err != nil {
		return answer
	}
	if _, ok := obj["instruction"]; !ok {
		return answer
	}
	raw, ok := obj["result"]
	if !ok {
		return answer
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// escapeControlChars escapes U+0000 to U+001F found inside JSON string
// literals. Text outside strings is copied unchanged.
func escapeControlChars(s string) []byte {
	out := make([]byte, 0, len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case !inString:
			if c == '"' {
				inString = true
			}
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = false
		case c < 0x20:
			out = append(out, fmt.Sprintf(`\u%04x`, c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// Manager owns the sessions of one process. Sessions live in memory only.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	invoker Invoker
	agent   AgentConfig
	counter *tokens.Counter
	logger  *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTokenCounter sets the counter used for prompt token statistics.
func WithTokenCounter(c *tokens.Counter) Option {
	return func(m *Manager) {
		m.counter = c
	}
}

// NewManager creates a manager whose sessions converse through invoker.
func NewManager(invoker Invoker, cfg AgentConfig, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		invoker:  invoker,
		agent:    cfg,
		counter:  tokens.NewCounter(""),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := newSession(m)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return nil, fmt.Errorf("session %s already exists", s.ID)
	}
	m.sessions[s.ID] = s
	m.logger.Debug("session created", "session_id", s.ID)
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Reset clears the session with the given id.
func (m *Manager) Reset(ctx context.Context, id string) (*Session, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	m.logger.Debug("session reset", "session_id", id)
	return s, nil
}

// Delete removes the session with the given id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.sessions, id)
	m.logger.Debug("session deleted", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
