package auth

import (
	"net/http"
	"strings"
)

// TokenCookie is the cookie the web client stores its access token in.
const TokenCookie = "jwt"

// CredentialFromRequest extracts a bearer token from the token or access_token query
// parameter, the Authorization header, or the jwt cookie, in that order.
func CredentialFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	query := r.URL.Query()
	for _, key := range []string{"token", "access_token"} {
		if token := strings.TrimSpace(query.Get(key)); token != "" {
			return token
		}
	}
	if token := BearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// BearerToken returns the token of an "Authorization: Bearer <token>" value.
func BearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
