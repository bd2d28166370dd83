package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/bedrock-agent-chat/internal/agent"
	"github.com/tjfontaine/bedrock-agent-chat/internal/citation"
	"github.com/tjfontaine/bedrock-agent-chat/internal/session"
	"github.com/tjfontaine/bedrock-agent-chat/internal/trace"
	"github.com/tjfontaine/bedrock-agent-chat/internal/upload"
)

// SessionView is the JSON form of a session.
type SessionView struct {
	ID             string             `json:"id"`
	AgentSessionID string             `json:"agentSessionId"`
	Messages       []session.Message  `json:"messages"`
	Attachment     *upload.Attachment `json:"attachment,omitempty"`
	Busy           bool               `json:"busy"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// TurnRequest is the body of POST /api/sessions/{id}/turns.
type TurnRequest struct {
	Prompt string `json:"prompt"`
}

// TraceView is the body of GET /api/sessions/{id}/trace.
type TraceView struct {
	Sections []trace.Section `json:"sections"`
	Steps    int             `json:"steps"`
}

// CitationsView is the body of GET /api/sessions/{id}/citations.
type CitationsView struct {
	Citations []citation.Entry `json:"citations"`
}

func newSessionView(s *session.Session) SessionView {
	return SessionView{
		ID:             s.ID,
		AgentSessionID: s.AgentSessionID(),
		Messages:       s.Messages(),
		Attachment:     s.Attachment(),
		Busy:           s.Busy(),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.info)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	AddLogField(r.Context(), "session_id", sess.ID)
	writeJSON(w, http.StatusCreated, newSessionView(sess))
}

// lookup resolves the {sessionID} URL parameter, writing the error response
// when the session does not exist.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	AddLogField(r.Context(), "session_id", id)
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	AddLogField(r.Context(), "session_id", id)
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	AddLogField(r.Context(), "session_id", id)
	sess, err := s.sessions.Reset(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req TurnRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeErrorStatus(w, r, http.StatusBadRequest, "invalid_request_error", "invalid JSON body: "+err.Error())
		return
	}

	result, err := sess.Converse(r.Context(), req.Prompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if result.CitationErr != nil {
		AddLogField(r.Context(), "citation_error", result.CitationError)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	// Allow a little room for multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.extractor.MaxSize+64<<10)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, r, upload.ErrTooLarge)
			return
		}
		s.writeErrorStatus(w, r, http.StatusBadRequest, "invalid_request_error", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.extractor.MaxSize+1))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	attachment, err := s.extractor.Extract(header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess.Attach(attachment)
	AddLogField(r.Context(), "attachment", attachment.Name)
	writeJSON(w, http.StatusOK, attachment)
}

func (s *Server) handleDetach(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.Detach()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sections := sess.Sections()
	writeJSON(w, http.StatusOK, TraceView{Sections: sections, Steps: trace.StepCount(sections)})
}

func (s *Server) handleCitations(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, CitationsView{Citations: sess.Citations()})
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// writeError maps err to a status code and error type.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	errType := "api_error"
	var code string

	var te *agent.TransportError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status, errType = http.StatusNotFound, "not_found_error"
	case errors.Is(err, session.ErrTurnInProgress):
		status, errType = http.StatusConflict, "conflict_error"
	case errors.Is(err, session.ErrEmptyPrompt), errors.Is(err, upload.ErrNoName):
		status, errType = http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, upload.ErrTooLarge):
		status, errType = http.StatusRequestEntityTooLarge, "request_too_large"
	case errors.Is(err, upload.ErrUnreadable):
		status, errType = http.StatusUnprocessableEntity, "invalid_request_error"
	case errors.Is(err, context.DeadlineExceeded):
		status, errType = http.StatusGatewayTimeout, "timeout_error"
	case errors.As(err, &te):
		status, errType, code = te.HTTPStatusCode(), string(te.Type)+"_error", te.Code
	}

	AddError(r.Context(), err)
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Type: errType, Message: err.Error(), Code: code}})
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, errType, msg string) {
	AddLogField(r.Context(), "error", msg)
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Type: errType, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
