package gateway

import (
	"net/http"
	"strings"
)

// ExtractToken pulls a bearer token from the upgrade request. Browsers cannot
// set arbitrary headers on a plain WebSocket handshake, so the query parameter
// takes priority; the Authorization header and cookie cover non-browser
// clients and same-origin setups.
func ExtractToken(r *http.Request) string {
	if tok := strings.TrimSpace(r.URL.Query().Get("token")); tok != "" {
		return tok
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
		return strings.TrimSpace(auth)
	}
	for _, name := range []string{"access_token", "token"} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return ""
}
