package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
)

// KeyHeader carries the shared secret on every internal request.
const KeyHeader = "x-toolkit-internal-key"

// OperatorHeader optionally names the human operator for audit attribution.
// It is informational, not an authentication factor.
const OperatorHeader = "x-toolkit-operator"

// Guard authenticates the internal toolkit surface with a shared secret.
type Guard struct {
	enabled bool
	key     string
}

// NewGuard creates a guard. The surface is reachable only when enabled is
// true AND key is non-empty; any other combination fails closed.
func NewGuard(enabled bool, key string) *Guard {
	return &Guard{enabled: enabled, key: key}
}

// Middleware rejects every request before handler logic runs unless the
// surface is enabled and the shared-secret header matches.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A disabled or unconfigured surface is unreachable, not forbidden:
		// respond as if the routes do not exist.
		if !g.enabled || g.key == "" {
			writeProblem(w, http.StatusNotFound, "Not Found", "The requested resource does not exist")
			return
		}

		provided := r.Header.Get(KeyHeader)
		if provided == "" {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Missing "+KeyHeader+" header")
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(g.key)) != 1 {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Invalid internal key")
			return
		}

		operator := r.Header.Get(OperatorHeader)
		if operator == "" {
			operator = "internal-api"
		}
		ctx := WithPrincipal(r.Context(), &OperatorPrincipal{ID: operator})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeProblem emits an RFC 7807 body. Kept local so this package stays a
// leaf: api depends on the executor, and the guard must not depend on api.
func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   fmt.Sprintf("https://brightsignal.io/errors/%d", status),
		"title":  title,
		"status": status,
		"detail": detail,
	})
}
