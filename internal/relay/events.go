package relay

import "time"

// Event names emitted to connections.
const (
	EventJoinedChat    = "joinedChat"
	EventLeftChat      = "leftChat"
	EventResponseStart = "responseStart"
	EventResponseChunk = "responseChunk"
	EventResponseEnd   = "responseEnd"
	EventError         = "error"
)

// Stable error codes clients branch on.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeLimitExceeded   = "LIMIT_EXCEEDED"
	CodeStreamError     = "STREAM_ERROR"
	CodeProcessingError = "PROCESSING_ERROR"
)

type StartPayload struct {
	ChatID    string    `json:"chatId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ChunkPayload struct {
	ChatID    string    `json:"chatId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type EndPayload struct {
	ChatID      string    `json:"chatId"`
	FullContent string    `json:"fullContent"`
	Timestamp   time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	ChatID  string `json:"chatId,omitempty"`
}

type RoomPayload struct {
	ChatID string `json:"chatId"`
}
