// Package auth checks bearer API keys against configured SHA-256 hashes.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidKey is returned for keys that match no configured hash.
var ErrInvalidKey = errors.New("invalid API key")

// Authenticator validates API keys. Only hashes are kept in memory.
type Authenticator struct {
	hashes [][]byte
}

// NewAuthenticator creates an authenticator accepting keys whose hex
// SHA-256 hash is in keyHashes.
func NewAuthenticator(keyHashes []string) (*Authenticator, error) {
	a := &Authenticator{}
	for _, h := range keyHashes {
		h = strings.ToLower(strings.TrimSpace(h))
		if len(h) != sha256.Size*2 {
			return nil, fmt.Errorf("key hash %q is not a hex SHA-256 digest", h)
		}
		if _, err := hex.DecodeString(h); err != nil {
			return nil, fmt.Errorf("key hash %q: %w", h, err)
		}
		a.hashes = append(a.hashes, []byte(h))
	}
	return a, nil
}

// Enabled reports whether any key is configured.
func (a *Authenticator) Enabled() bool {
	return a != nil && len(a.hashes) > 0
}

// ValidateAPIKey checks apiKey against every configured hash.
func (a *Authenticator) ValidateAPIKey(apiKey string) error {
	keyHash := []byte(HashAPIKey(apiKey))

	// Compare against all hashes so timing does not reveal which matched.
	match := 0
	for _, h := range a.hashes {
		match |= subtle.ConstantTimeCompare(keyHash, h)
	}
	if match != 1 {
		return ErrInvalidKey
	}
	return nil
}

// ExtractAPIKey extracts the API key from the Authorization header
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// GenerateAPIKey returns a random key with the "ac-" prefix.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return "ac-" + hex.EncodeToString(b), nil
}
