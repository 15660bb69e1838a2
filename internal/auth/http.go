// ABOUTME: HTTP middleware for bearer token authentication on API endpoints
// ABOUTME: The gate attaches identity when a token is present; RequireIdentity enforces it

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Gate outcomes reported to a GateRecorder.
const (
	GateAnonymous     = "anonymous"
	GateAuthenticated = "authenticated"
	GateMalformed     = "malformed"
	GateExpired       = "expired"
)

// GateRecorder observes gate decisions.
type GateRecorder interface {
	ObserveGate(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveGate(string) {}

// extractBearerToken returns the credential after the "Bearer " prefix, and
// false when the header is not a bearer credential at all.
func extractBearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authHeader, "Bearer "), true
}

// Gate creates an HTTP middleware that validates bearer tokens.
//
// Requests without a bearer credential pass through with no identity. A bearer
// credential that fails validation is rejected with 401 and the handler is not
// run. A valid one attaches an Identity to the request context.
func Gate(validator TokenValidator, logger *slog.Logger, recorder GateRecorder) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth-gate")
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				recorder.ObserveGate(GateAnonymous)
				next.ServeHTTP(w, r) // Continue as anonymous
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				msg := "invalid token"
				outcome := GateMalformed
				if errors.Is(err, ErrExpiredToken) {
					msg = "token expired"
					outcome = GateExpired
				}
				recorder.ObserveGate(outcome)
				logger.Debug("rejected bearer token", "path", r.URL.Path, "error", err)
				writeUnauthorized(w, msg)
				return
			}

			recorder.ObserveGate(GateAuthenticated)
			id := &Identity{
				Subject:   claims.Subject,
				IssuedAt:  claims.IssuedAt,
				ExpiresAt: claims.ExpiresAt,
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireIdentity creates an HTTP middleware that rejects requests the gate
// did not authenticate. Must be used after Gate.
func RequireIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFromContext(r.Context()) == nil {
				writeUnauthorized(w, "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="fieldbook"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
