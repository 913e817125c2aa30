// Package auth verifies the service token presented by the presentation layer
// and establishes the actor identity for downstream operations.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// TokenVerifier checks bearer tokens against a bcrypt hash.
type TokenVerifier struct {
	hash   []byte
	logger *slog.Logger
}

// NewTokenVerifier constructs a verifier from the configured hash.
func NewTokenVerifier(hash string, logger *slog.Logger) *TokenVerifier {
	return &TokenVerifier{hash: []byte(hash), logger: logger}
}

// Middleware rejects requests without a valid bearer token and injects the
// actor identity from the X-Actor-ID / X-Actor-Name headers.
func (v *TokenVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			httpx.Fail(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
			v.logger.Warn("token rejected", slog.String("path", r.URL.Path))
			httpx.Fail(w, http.StatusUnauthorized, "invalid token")
			return
		}
		actor := shared.Actor{
			ID:   r.Header.Get("X-Actor-ID"),
			Name: r.Header.Get("X-Actor-Name"),
		}
		if actor.ID == "" {
			httpx.Fail(w, http.StatusUnauthorized, "missing actor identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}
