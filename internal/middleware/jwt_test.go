package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	username string
	err      error
}

func (f *fakeValidator) ValidateToken(token string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.username, nil
}

func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := UsernameFrom(r.Context())
		require.True(t, ok)
		w.Write([]byte(username))
	})
}

func TestAuth_BearerHeader(t *testing.T) {
	auth := NewAuth(&fakeValidator{username: "alice"})
	handler := auth.Handle(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", rec.Body.String())
}

func TestAuth_QueryParamFallback(t *testing.T) {
	auth := NewAuth(&fakeValidator{username: "alice"})
	handler := auth.Handle(protectedEcho(t))

	// Websocket dials from browsers cannot set headers.
	req := httptest.NewRequest(http.MethodGet, "/ws?token=some-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_MissingToken(t *testing.T) {
	auth := NewAuth(&fakeValidator{username: "alice"})
	handler := auth.Handle(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	auth := NewAuth(&fakeValidator{err: errors.New("expired")})
	handler := auth.Handle(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
