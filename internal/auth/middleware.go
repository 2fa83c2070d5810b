package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/keithlinneman/linnemanlabs-cms/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-cms/internal/log"
)

type ctxKey struct{}

// WithUsername stores the authenticated username in ctx.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxKey{}, username)
}

// UsernameFromContext returns the username set by RequireBearer.
func UsernameFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(ctxKey{}).(string)
	return u, ok && u != ""
}

// Validator is satisfied by *Tokens.
type Validator interface {
	Validate(token string) (*Claims, error)
}

// RequireBearer rejects requests without a valid "Bearer <token>"
// Authorization header. On success the username is added to the request
// context, the request logger and the access log line.
func RequireBearer(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				unauthorized(w, "Unauthorized")
				return
			}
			claims, err := v.Validate(strings.TrimSpace(token))
			if err != nil {
				log.FromContext(r.Context()).Debug(r.Context(), "bearer token rejected", "reason", err.Error())
				unauthorized(w, "Invalid or expired token")
				return
			}
			ctx := WithUsername(r.Context(), claims.Username)
			ctx = log.WithContext(ctx, log.FromContext(ctx).With("user", claims.Username))
			httpmw.Annotate(ctx, "user", claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// unauthorized writes a bare plaintext 401, without the newline http.Error adds.
func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(msg))
}
