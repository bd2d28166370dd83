package server

import (
	"net/http"

	"github.com/tjfontaine/bedrock-agent-chat/internal/auth"
)

// AuthMiddleware requires a valid bearer API key. A nil or empty
// authenticator lets every request through.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !authenticator.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, err := auth.ExtractAPIKey(r)
			if err == nil {
				err = authenticator.ValidateAPIKey(apiKey)
			}
			if err != nil {
				AddError(r.Context(), err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="agentchat"`)
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: ErrorDetail{Type: "authentication_error", Message: err.Error()}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
