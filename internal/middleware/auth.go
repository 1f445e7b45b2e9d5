package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ayush/auth-gateway/internal/auth"
	"github.com/ayush/auth-gateway/internal/metrics"
)

const bearerPrefix = "Bearer "

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// RequireAuth is middleware that validates the bearer token and injects the
// user id into the request context. Every invalid token gets the same
// response; the cause is only logged.
func RequireAuth(tokens TokenVerifier, rec metrics.Recorder) func(http.Handler) http.Handler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				rec.RecordAuth(metrics.FlowToken, "missing")
				unauthorized(w, "Access Denied. No token provided.")
				return
			}

			raw, ok := strings.CutPrefix(header, bearerPrefix)
			if !ok {
				rec.RecordAuth(metrics.FlowToken, "malformed")
				slog.WarnContext(r.Context(), "bearer token rejected",
					slog.String("reason", "missing_bearer_prefix"),
					slog.String("path", r.URL.Path),
				)
				unauthorized(w, "Invalid Token")
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				reason := auth.InvalidTokenReason(err)
				rec.RecordAuth(metrics.FlowToken, reason)
				slog.WarnContext(r.Context(), "bearer token rejected",
					slog.String("reason", reason),
					slog.String("path", r.URL.Path),
				)
				unauthorized(w, "Invalid Token")
				return
			}

			rec.RecordAuth(metrics.FlowToken, "success")
			recordUserID(r.Context(), claims.UserID)
			ctx := auth.WithUserID(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
