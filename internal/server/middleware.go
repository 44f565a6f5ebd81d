package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/abczzz13/unprotect"
)

type contextKey string

const decisionContextKey contextKey = "unprotect_decision"

// DecisionFromContext returns the bypass decision stored by Gate.
func DecisionFromContext(ctx context.Context) (unprotect.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey).(unprotect.Decision)
	return d, ok
}

// Gate evaluates the bypass policy for every request and stores the
// Decision in the request context. It does not block: downstream handlers
// decide whether to show the password prompt.
func (s *Server) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.settings.Current(r.Context())
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		decision := s.policy.DecideRequest(s.sessions.LoggedIn(r), cfg, r)
		ctx := context.WithValue(r.Context(), decisionContextKey, decision)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminAuth requires a Bearer token equal to token.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, http.StatusUnauthorized, CodeUnauthorized, "missing authorization header")
				return
			}

			provided, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || provided == "" {
				respondError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid authorization header format")
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				respondError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid admin token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
