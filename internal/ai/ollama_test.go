package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func ndjsonLine(t *testing.T, content string, done bool) string {
	t.Helper()
	b, err := json.Marshal(ollamaStreamResp{Message: ollamaMsg{Role: "assistant", Content: content}, Done: done})
	if err != nil {
		t.Fatalf("marshal line: %v", err)
	}
	return string(b)
}

func collect(t *testing.T, chunks <-chan string, errs <-chan error) (string, error) {
	t.Helper()
	var sb strings.Builder
	for c := range chunks {
		sb.WriteString(c)
	}
	select {
	case err, ok := <-errs:
		if ok {
			return sb.String(), err
		}
	default:
	}
	return sb.String(), nil
}

func TestOllamaStreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaChatReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Errorf("expected streaming request")
		}
		fmt.Fprintln(w, ndjsonLine(t, "<think>planning", false))
		fmt.Fprintln(w, ndjsonLine(t, "</think>Hello", false))
		fmt.Fprintln(w, ndjsonLine(t, " world", false))
		fmt.Fprintln(w, ndjsonLine(t, "", true))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model")
	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})

	got, err := collect(t, chunks, errs)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if got != "Hello world" {
		t.Fatalf("got %q, want %q", got, "Hello world")
	}
}

func TestOllamaStreamChat_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, ndjsonLine(t, "partial", false))
		fmt.Fprintln(w, `{"error":"model exploded"}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model")
	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})

	_, err := collect(t, chunks, errs)
	if err == nil || !strings.Contains(err.Error(), "model exploded") {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestOllamaStreamChat_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model")
	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}})

	if _, err := collect(t, chunks, errs); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestOllamaChat_StripsThinking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := ollamaChatResp{Message: ollamaMsg{Role: "assistant", Content: "<think>hmm</think>Paris"}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model")
	got, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "capital of France?"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got != "Paris" {
		t.Fatalf("got %q", got)
	}
}

func TestRegistry_Routing(t *testing.T) {
	cases := []struct {
		model string
		want  string
	}{
		{"deepseek-r1:7b", "ollama"},
		{"llama3:latest", "ollama"},
		{"deepseek/deepseek-chat", "openrouter"},
		{"anthropic/claude-sonnet", "openrouter"},
	}
	for _, c := range cases {
		if got := ProviderNameForModel(c.model); got != c.want {
			t.Errorf("ProviderNameForModel(%q) = %q, want %q", c.model, got, c.want)
		}
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Get(context.Background(), "missing", "m"); err == nil {
		t.Fatalf("expected error for unregistered provider")
	}

	reg.Register("Fake", func(ctx context.Context, model string) (Provider, error) {
		return nil, errors.New("factory reached")
	})
	// lookup is case-insensitive
	if _, err := reg.Get(context.Background(), "fake", "m"); err == nil || err.Error() != "factory reached" {
		t.Fatalf("expected factory to be invoked, got %v", err)
	}
}
