package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// RequestIDMiddleware Tests
// =============================================================================

func TestRequestIDMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("Expected request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	wrapped := RequestIDMiddleware(handler)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected X-Request-ID header to be set")
	}
}

func TestRequestIDMiddleware_UniqueIDs(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	wrapped := RequestIDMiddleware(handler)

	rec1 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec1, httptest.NewRequest("GET", "/", nil))

	rec2 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec2, httptest.NewRequest("GET", "/", nil))

	id1 := rec1.Header().Get(RequestIDHeader)
	id2 := rec2.Header().Get(RequestIDHeader)

	if id1 == id2 {
		t.Errorf("Expected unique request IDs, got same: %s", id1)
	}
}

func TestRequestIDMiddleware_ClientID(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	wrapped := RequestIDMiddleware(handler)

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "valid uuid kept", incoming: "6f1c3f0e-8a42-4c1e-9a0e-2f6f7d1c9b11", keep: true},
		{name: "garbage replaced", incoming: "not-a-uuid", keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.Header.Set(RequestIDHeader, tt.incoming)
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if (got == tt.incoming) != tt.keep {
				t.Errorf("X-Request-ID = %q, incoming %q, keep %v", got, tt.incoming, tt.keep)
			}
		})
	}
}

func TestGetRequestID_NotSet(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("Expected empty string, got %q", id)
	}
}

// =============================================================================
// TimeoutMiddleware Tests
// =============================================================================

func TestTimeoutMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok := r.Context().Deadline()
		if !ok || deadline.IsZero() {
			t.Error("Expected context to have deadline")
		}
		w.WriteHeader(http.StatusOK)
	})

	wrapped := TimeoutMiddleware(30 * time.Second)(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestTimeoutMiddleware_ContextCancelled(t *testing.T) {
	contextCancelled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			contextCancelled = true
		case <-time.After(time.Second):
		}
		w.WriteHeader(http.StatusOK)
	})

	wrapped := TimeoutMiddleware(10 * time.Millisecond)(handler)
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if !contextCancelled {
		t.Error("Expected context to be cancelled due to timeout")
	}
}

func TestTimeoutMiddleware_Disabled(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); ok {
			t.Error("Expected no deadline when timeout is zero")
		}
	})

	TimeoutMiddleware(0)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

// =============================================================================
// LoggingMiddleware Tests
// =============================================================================

func TestLoggingMiddleware(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	wrapped := RequestIDMiddleware(LoggingMiddleware(logger)(testHandler))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/test-path", nil))

	output := buf.String()

	if !strings.Contains(output, "request started") {
		t.Error("Expected 'request started' in log output")
	}
	if !strings.Contains(output, "request completed") {
		t.Error("Expected 'request completed' in log output")
	}
	if !strings.Contains(output, "/test-path") {
		t.Error("Expected path in log output")
	}
	if !strings.Contains(output, "bytes=2") {
		t.Errorf("Expected body size in log output, got: %s", output)
	}
	if !strings.Contains(output, "request_id="+rec.Header().Get(RequestIDHeader)) {
		t.Errorf("Expected request ID in log output, got: %s", output)
	}
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusConflict, "level=WARN"},
		{http.StatusBadGateway, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf strings.Builder
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			LoggingMiddleware(logger)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

			if !strings.Contains(buf.String(), tt.level) {
				t.Errorf("log output = %q, want %s", buf.String(), tt.level)
			}
		})
	}
}

func TestAddLogField(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "session_id", "abc")
		AddLogField(r.Context(), "empty_field", "")
		w.WriteHeader(http.StatusOK)
	})

	LoggingMiddleware(logger)(testHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	output := buf.String()
	if !strings.Contains(output, "session_id=abc") {
		t.Errorf("Expected custom field in log output, got: %s", output)
	}
	if strings.Contains(output, "empty_field") {
		t.Errorf("Empty field should not be in log output, got: %s", output)
	}
}

func TestAddLogField_NoContext(t *testing.T) {
	AddLogField(context.Background(), "key", "value")
}

func TestAddError(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddError(r.Context(), errors.New("test error message"))
		AddError(r.Context(), nil)
		w.WriteHeader(http.StatusInternalServerError)
	})

	LoggingMiddleware(logger)(testHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	output := buf.String()
	if !strings.Contains(output, "test error message") {
		t.Errorf("Expected error in log output, got: %s", output)
	}
}
