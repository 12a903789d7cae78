// Package auth resolves the caller's identity from request headers.
//
// Session issuance lives in an external auth provider; this package only
// consumes it through the Resolver capability and threads the resolved user
// through the request context. Core operations never read ambient state.
package auth

import (
	"context"
	"net/http"
	"time"
)

// User is the slice of the external user record the forum touches.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session is the provider-issued session attached to a request.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionData pairs a session with its user.
type SessionData struct {
	User    User
	Session Session
}

// Resolver turns request headers into a session, or nil when the request
// carries no valid identity. Implementations must not mutate the headers.
type Resolver interface {
	GetSession(ctx context.Context, headers http.Header) (*SessionData, error)
}

type ctxKeyUser struct{}
type ctxKeySession struct{}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKeyUser{}).(User)
	return u, ok
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKeySession{}).(Session)
	return s, ok
}

// WithUser injects a user into the context. Useful for testing handlers.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKeyUser{}, u)
}

func withSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKeySession{}, s)
}
