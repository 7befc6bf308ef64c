// Package auth carries the request subject through the context and gates
// routes on authentication and the admin role.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diewo77/stockroom/httpx"
	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/ownership"
)

type ctxKey string

const subjectCtxKey = ctxKey("subject")

// TokenCookie carries the bearer token for server-rendered pages.
const TokenCookie = "stockroom_token"

// Authenticator resolves the subject behind a bearer token. It returns an
// error when the token is present but unusable.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*ownership.Subject, error)
}

// WithSubject stores s in ctx.
func WithSubject(ctx context.Context, s *ownership.Subject) context.Context {
	return context.WithValue(ctx, subjectCtxKey, s)
}

// SubjectFromContext extracts the request subject.
func SubjectFromContext(ctx context.Context) (*ownership.Subject, bool) {
	s, ok := ctx.Value(subjectCtxKey).(*ownership.Subject)
	return s, ok && s.Authenticated()
}

// BearerToken returns the token from the Authorization header, falling
// back to TokenCookie. It returns "" when neither is set.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		if c, err := r.Cookie(TokenCookie); err == nil {
			return c.Value
		}
		return ""
	}
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Middleware attaches the subject to the request context if a valid token
// is present. Requests without one continue anonymously; gates decide.
func Middleware(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			s, err := a.Authenticate(r.Context(), token)
			if err != nil {
				slog.DebugContext(r.Context(), "token rejected", "path", r.URL.Path, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), s)))
		})
	}
}

// RequireAuth answers 401 when the request has no subject.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SubjectFromContext(r.Context()); !ok {
			httpx.Error(w, r, apperr.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin answers 401 without a subject and 403 for non-admins.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SubjectFromContext(r.Context())
		if !ok {
			httpx.Error(w, r, apperr.Unauthorized("authentication required"))
			return
		}
		if !ownership.IsAdmin(s) {
			httpx.Error(w, r, apperr.Forbidden("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
