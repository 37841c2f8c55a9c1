package ai

import "context"

// Message is one role-tagged turn of a prompt sequence.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider answers a full prompt sequence with a single completion.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// StreamProvider is an optional interface. Providers may implement streaming chat.
// Both channels are closed when the stream ends; a mid-stream failure is sent on
// the error channel before close.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}
