package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie the auth provider sets on login.
const SessionCookie = "forum_session"

// Claims is the session token payload issued by the auth provider.
type Claims struct {
	jwt.RegisteredClaims
	Name      string `json:"name"`
	SessionID string `json:"sid"`
}

// JWTResolver verifies HS256 session tokens minted by the auth provider.
// Tokens arrive either as a Bearer Authorization header or in SessionCookie.
type JWTResolver struct {
	Secret []byte
}

func (v JWTResolver) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// GetSession implements Resolver. A request without a token resolves to
// (nil, nil); only malformed or forged tokens produce an error.
func (v JWTResolver) GetSession(_ context.Context, headers http.Header) (*SessionData, error) {
	token := tokenFromHeaders(headers)
	if token == "" {
		return nil, nil
	}
	claims, err := v.Parse(token)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token missing subject")
	}
	data := &SessionData{
		User:    User{ID: claims.Subject, Name: claims.Name},
		Session: Session{ID: claims.SessionID, UserID: claims.Subject},
	}
	if claims.ExpiresAt != nil {
		data.Session.ExpiresAt = claims.ExpiresAt.Time
	}
	return data, nil
}

func tokenFromHeaders(headers http.Header) string {
	authz := strings.TrimSpace(headers.Get("Authorization"))
	if authz != "" {
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	// Fall back to the session cookie set by the auth provider.
	req := http.Request{Header: headers}
	if c, err := req.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
