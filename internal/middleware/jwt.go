package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const usernameKey contextKey = "username"

// TokenValidator is what the middleware needs from the user service.
// The interface keeps this package decoupled from internal/user.
type TokenValidator interface {
	ValidateToken(tokenString string) (string, error)
}

// Auth rejects requests without a valid bearer token before they reach
// any handler, websocket upgrades included.
type Auth struct {
	validator TokenValidator
}

func NewAuth(v TokenValidator) *Auth {
	return &Auth{validator: v}
}

func (a *Auth) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 {
				tokenString = parts[1]
			}
		}

		// Browsers cannot set headers on websocket dials, so the token
		// may arrive as a query param instead.
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			http.Error(w, "missing authentication token", http.StatusUnauthorized)
			return
		}

		username, err := a.validator.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UsernameFrom extracts the authenticated identity set by Handle.
func UsernameFrom(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok
}

// WithUsername returns ctx carrying an authenticated identity, exactly
// as Handle would set it.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}
