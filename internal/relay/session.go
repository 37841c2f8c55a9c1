package relay

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vortexchat/backend/internal/ai"
	"github.com/vortexchat/backend/internal/usage"
	"go.uber.org/zap"
)

// Source opens a generation stream for a prompt sequence. Both channels are
// closed when the stream ends; a mid-stream failure arrives on the error
// channel before close.
type Source interface {
	Stream(ctx context.Context, messages []ai.Message, model string) (<-chan string, <-chan error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, messages []ai.Message, model string) (<-chan string, <-chan error)

func (f SourceFunc) Stream(ctx context.Context, messages []ai.Message, model string) (<-chan string, <-chan error) {
	return f(ctx, messages, model)
}

// Quota is the ledger consulted before and charged after a session.
type Quota interface {
	CanSend(ctx context.Context, id usage.Identity) (usage.Decision, error)
	Increment(ctx context.Context, id usage.Identity, tokens int) error
}

// Store persists conversation turns and serves bounded recent history.
type Store interface {
	RecentHistoryAsc(ctx context.Context, conversationID string, limit int) ([]ai.Message, error)
	AppendUserMessage(ctx context.Context, conversationID string, userID uint64, content, model string) error
	AppendAssistantMessage(ctx context.Context, conversationID string, authorID *uint64, content, model string) error
}

type Config struct {
	DefaultModel  string
	HistoryWindow int
	FlushInterval time.Duration
	FlushMaxChars int
}

// Relay coordinates one streaming session per inbound chat message: quota
// check, history, generation stream, pacing, fan-out, and final bookkeeping.
type Relay struct {
	rooms  *Rooms
	quota  Quota
	store  Store
	source Source
	cfg    Config
	log    *zap.Logger
}

func NewRelay(rooms *Rooms, quota Quota, store Store, source Source, cfg Config, log *zap.Logger) *Relay {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "deepseek-r1:7b"
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 20
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 60 * time.Millisecond
	}
	if cfg.FlushMaxChars <= 0 {
		cfg.FlushMaxChars = 800
	}
	return &Relay{rooms: rooms, quota: quota, store: store, source: source, cfg: cfg, log: log}
}

// SendMessage is the inbound "send message" event. Clients send the text in
// either field; chatId, model and broadcast are optional.
type SendMessage struct {
	Message   string `json:"message"`
	Content   string `json:"content"`
	ChatID    string `json:"chatId"`
	Model     string `json:"model"`
	Broadcast *bool  `json:"broadcast"`
}

// Ack is the synchronous answer to a send, delivered before any processing.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

const thinkingPlaceholder = "Thinking..."

// Handle validates the message, acknowledges it, and runs the streaming
// session in the background. The transport gets its ack before the first
// event of the session can be emitted.
func (r *Relay) Handle(conn Conn, in SendMessage, ack func(Ack)) {
	chatID := strings.TrimSpace(in.ChatID)
	if chatID == "" {
		chatID = "anonymous-" + conn.ID()
	}

	text := strings.TrimSpace(in.Message)
	if text == "" {
		text = strings.TrimSpace(in.Content)
	}
	if text == "" {
		if ack != nil {
			ack(Ack{Status: "error", Message: "message cannot be empty"})
		}
		conn.Emit(EventError, ErrorPayload{Message: "Message cannot be empty.", Code: CodeBadRequest, ChatID: chatID})
		return
	}

	// explicit false disables room fan-out for this conversation until changed
	r.rooms.SetBroadcast(chatID, in.Broadcast == nil || *in.Broadcast)

	if ack != nil {
		ack(Ack{Status: "ok", Message: "message received"})
	}

	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = r.cfg.DefaultModel
	}

	go r.process(conn, chatID, text, model)
}

func (r *Relay) process(conn Conn, chatID, text, model string) {
	log := r.log.With(zap.String("chat_id", chatID), zap.String("conn_id", conn.ID()))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("relay session panic", zap.Any("panic", rec))
			conn.Emit(EventError, ErrorPayload{
				Message: "Failed to process message. Please try again.",
				Code:    CodeProcessingError,
				ChatID:  chatID,
			})
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One-shot cancellation flag, set by the disconnect watcher. The watcher
	// is released when the session exits so it cannot outlive the session.
	var cancelled atomic.Bool
	unwatch := make(chan struct{})
	defer close(unwatch)
	go func() {
		select {
		case <-conn.Done():
			cancelled.Store(true)
			cancel()
		case <-unwatch:
		}
	}()

	userID := conn.UserID()
	identity := usage.Identity{UserID: userID}
	if userID == 0 {
		identity.AnonymousID = chatID
	}

	if userID != 0 {
		dec, err := r.quota.CanSend(ctx, identity)
		if err != nil {
			log.Error("quota check failed", zap.Error(err))
			r.emitProcessingError(conn, chatID)
			return
		}
		if !dec.Allowed {
			// sender only, never the room
			conn.Emit(EventError, ErrorPayload{
				Message: "You have reached your daily message limit.",
				Code:    CodeLimitExceeded,
				ChatID:  chatID,
			})
			return
		}
	}

	r.rooms.Join(conn, chatID)

	if userID != 0 {
		if err := r.store.AppendUserMessage(ctx, chatID, userID, text, model); err != nil {
			log.Error("persist user message failed", zap.Error(err))
			r.emitProcessingError(conn, chatID)
			return
		}
	}

	r.rooms.Emit(chatID, conn, EventResponseStart, StartPayload{
		ChatID:    chatID,
		Content:   thinkingPlaceholder,
		Timestamp: time.Now().UTC(),
	})

	history := []ai.Message{}
	if userID != 0 {
		var err error
		history, err = r.store.RecentHistoryAsc(ctx, chatID, r.cfg.HistoryWindow)
		if err != nil {
			log.Error("history read failed", zap.Error(err))
			r.emitProcessingError(conn, chatID)
			return
		}
	}
	prompt := append(history, ai.Message{Role: "user", Content: text})

	chunks, errs := r.source.Stream(ctx, prompt, model)

	pacer := NewPacer(r.cfg.FlushInterval, r.cfg.FlushMaxChars, func(out string) {
		r.rooms.Emit(chatID, conn, EventResponseChunk, ChunkPayload{
			ChatID:    chatID,
			Content:   out,
			Timestamp: time.Now().UTC(),
		})
	})

	var full strings.Builder
	var last rune
	fragments := 0
	aborted := false
	for piece := range chunks {
		if cancelled.Load() {
			aborted = true
			break
		}
		if piece == "" {
			continue
		}
		glue := ""
		if needsSpace(last, piece) {
			glue = " "
		}
		full.WriteString(glue)
		full.WriteString(piece)
		last = lastRune(piece)
		pacer.Add(glue + piece)
		fragments++
	}

	if aborted || cancelled.Load() {
		pacer.Stop()
		log.Warn("stream aborted: client disconnected", zap.Int("fragments", fragments))
		return
	}

	select {
	case err, ok := <-errs:
		if ok && err != nil {
			pacer.Stop()
			log.Error("generation stream failed", zap.Error(err))
			r.rooms.Emit(chatID, conn, EventError, ErrorPayload{
				Message: "Failed to generate a response. Please try again.",
				Code:    CodeStreamError,
				ChatID:  chatID,
			})
			return
		}
	default:
	}

	pacer.Finish()

	fullContent := full.String()

	// Clean completion: persistence and the quota charge happen here and only
	// here. A disconnect from now on must not abort the bookkeeping.
	pctx := context.WithoutCancel(ctx)

	var author *uint64
	if userID != 0 {
		author = &userID
	}
	if err := r.store.AppendAssistantMessage(pctx, chatID, author, fullContent, model); err != nil {
		log.Error("persist assistant message failed", zap.Error(err))
		r.emitProcessingError(conn, chatID)
		return
	}
	// Streaming backends do not report usable token counts; charge the
	// nominal cost.
	if err := r.quota.Increment(pctx, identity, 0); err != nil {
		log.Error("quota increment failed", zap.Error(err))
	}

	r.rooms.Emit(chatID, conn, EventResponseEnd, EndPayload{
		ChatID:      chatID,
		FullContent: fullContent,
		Timestamp:   time.Now().UTC(),
	})
	log.Info("response completed", zap.Int("fragments", fragments), zap.Int("length", len(fullContent)))
}

func (r *Relay) emitProcessingError(conn Conn, chatID string) {
	conn.Emit(EventError, ErrorPayload{
		Message: "Failed to process message. Please try again.",
		Code:    CodeProcessingError,
		ChatID:  chatID,
	})
}
