package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCredentialFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=q1&access_token=q2", nil)
	req.Header.Set("Authorization", "Bearer h1")
	require.Equal(t, "q1", CredentialFromRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/ws?access_token=q2", nil)
	require.Equal(t, "q2", CredentialFromRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "bearer  h1 ")
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "c1"})
	require.Equal(t, "h1", CredentialFromRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Basic abc")
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "c1"})
	require.Equal(t, "c1", CredentialFromRequest(req))

	require.Empty(t, CredentialFromRequest(httptest.NewRequest(http.MethodGet, "/ws", nil)))
	require.Empty(t, CredentialFromRequest(nil))
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", BearerToken("Bearer abc"))
	require.Empty(t, BearerToken("Bearer"))
	require.Empty(t, BearerToken("Token abc"))
}
