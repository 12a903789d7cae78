package auth

import (
	"net/http"

	"github.com/example/forum-platform/internal/platform/api"
)

// SetSession resolves the caller's session, if any, and injects the user into
// the request context. Anonymous requests pass through untouched; a token that
// fails verification is treated as anonymous rather than rejected, since read
// endpoints are public.
func SetSession(resolver Resolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := resolver.GetSession(r.Context(), r.Header)
			if err == nil && data != nil {
				ctx := WithUser(r.Context(), data.User)
				ctx = withSession(ctx, data.Session)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests that did not resolve to an authenticated user.
// Must run after SetSession.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			api.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
