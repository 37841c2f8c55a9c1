package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractToken_QueryParamWins(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "from-cookie"})

	if got := ExtractToken(r); got != "from-query" {
		t.Fatalf("got %q, want query token", got)
	}
}

func TestExtractToken_BearerHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer abc123")

	if got := ExtractToken(r); got != "abc123" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractToken_RawHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "abc123")

	if got := ExtractToken(r); got != "abc123" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractToken_CookieFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.AddCookie(&http.Cookie{Name: "token", Value: "cookie-token"})

	if got := ExtractToken(r); got != "cookie-token" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractToken_AccessTokenCookiePreferred(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.AddCookie(&http.Cookie{Name: "token", Value: "secondary"})
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "primary"})

	if got := ExtractToken(r); got != "primary" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractToken_Missing(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	if got := ExtractToken(r); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}
