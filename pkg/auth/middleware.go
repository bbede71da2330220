package auth

import (
	"context"
	"net/http"
	"strings"

	"coachsync/pkg/logger"
)

type ctxUserKey struct{}

// Middleware verifies the Authorization bearer token on every request and
// injects the verified user id into the request context. Requests without
// a valid token are rejected; handlers never see them.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" || !strings.HasPrefix(raw, "Bearer ") {
				logger.Warn("missing_bearer_token", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}
			claims, err := v.Verify(strings.TrimPrefix(raw, "Bearer "))
			if err != nil {
				logger.Warn("invalid_token", "path", r.URL.Path, "error", err)
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the verified user id or empty string.
func UserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxUserKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
