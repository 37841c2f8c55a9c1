package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vortexchat/backend/internal/auth"
	"github.com/vortexchat/backend/internal/chat"
	"github.com/vortexchat/backend/internal/relay"
)

// Handler upgrades HTTP requests to WebSocket connections and dispatches the
// chat event protocol onto the relay and the conversation service.
type Handler struct {
	relay     *relay.Relay
	rooms     *relay.Rooms
	chats     *chat.Service
	jwtSecret string
	upgrader  websocket.Upgrader
	log       *zap.Logger
}

func NewHandler(rl *relay.Relay, rooms *relay.Rooms, chats *chat.Service, jwtSecret string, readBuf, writeBuf int, log *zap.Logger) *Handler {
	if readBuf <= 0 {
		readBuf = 4096
	}
	if writeBuf <= 0 {
		writeBuf = 4096
	}
	return &Handler{
		relay:     rl,
		rooms:     rooms,
		chats:     chats,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			// Cross-origin is enforced upstream; browsers from other origins
			// still cannot steal credentials over the token query param.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Serve is the gin handler for the WebSocket endpoint. Authentication is
// best-effort: a missing or invalid token downgrades the connection to
// anonymous instead of rejecting it.
func (h *Handler) Serve(c *gin.Context) {
	var userID uint64
	if tok := ExtractToken(c.Request); tok != "" {
		uid, err := auth.VerifyJWT(tok, h.jwtSecret)
		if err != nil {
			h.log.Warn("websocket auth failed, continuing anonymous", zap.Error(err))
		} else {
			userID = uid
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(uuid.NewString(), userID, conn, h.log)
	h.log.Info("client connected",
		zap.String("conn_id", client.ID()),
		zap.Uint64("user_id", userID),
		zap.Bool("anonymous", userID == 0))

	go client.writePump()
	client.readPump(func(env envelope) { h.dispatch(client, env) })

	h.rooms.LeaveAll(client)
	h.log.Info("client disconnected", zap.String("conn_id", client.ID()))
}

func (h *Handler) dispatch(client *Client, env envelope) {
	switch env.Event {
	case "sendMessage":
		var in relay.SendMessage
		if err := json.Unmarshal(env.Data, &in); err != nil {
			client.Emit(relay.EventError, relay.ErrorPayload{Message: "Invalid message payload.", Code: relay.CodeBadRequest})
			return
		}
		h.relay.Handle(client, in, func(a relay.Ack) {
			client.Emit("ack", a)
		})

	case "joinChat":
		room, ok := h.roomFrom(client, env.Data)
		if !ok {
			return
		}
		h.rooms.Join(client, room)
		client.Emit(relay.EventJoinedChat, relay.RoomPayload{ChatID: room})

	case "leaveChat":
		room, ok := h.roomFrom(client, env.Data)
		if !ok {
			return
		}
		h.rooms.Leave(client, room)
		client.Emit(relay.EventLeftChat, relay.RoomPayload{ChatID: room})

	case "newChat":
		h.newChat(client, env.Data)

	case "listChats":
		h.listChats(client)

	case "renameChat":
		h.renameChat(client, env.Data)

	case "deleteChat":
		h.deleteChat(client, env.Data)

	case "getHistory":
		h.getHistory(client, env.Data)

	default:
		client.Emit(relay.EventError, relay.ErrorPayload{
			Message: "Unknown event: " + env.Event,
			Code:    relay.CodeBadRequest,
		})
	}
}

func (h *Handler) roomFrom(client *Client, data json.RawMessage) (string, bool) {
	var p relay.RoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChatID == "" {
		client.Emit(relay.EventError, relay.ErrorPayload{Message: "chatId is required.", Code: relay.CodeBadRequest})
		return "", false
	}
	return p.ChatID, true
}

func (h *Handler) newChat(client *Client, data json.RawMessage) {
	var p struct {
		Title string `json:"title"`
	}
	_ = json.Unmarshal(data, &p)

	ctx, cancel := h.opCtx()
	defer cancel()

	var owner *uint64
	if uid := client.UserID(); uid != 0 {
		owner = &uid
	}
	conv, err := h.chats.CreateConversation(ctx, owner, p.Title)
	if err != nil {
		h.log.Error("create conversation failed", zap.Error(err))
		client.Emit(relay.EventError, relay.ErrorPayload{Message: "Failed to create chat.", Code: relay.CodeProcessingError})
		return
	}
	h.rooms.Join(client, conv.ID)
	client.Emit(relay.EventJoinedChat, relay.RoomPayload{ChatID: conv.ID})
	client.Emit("chatCreated", gin.H{"chatId": conv.ID, "title": conv.Title})
}

func (h *Handler) listChats(client *Client) {
	if client.UserID() == 0 {
		client.Emit("chatsListed", []chat.ConversationSummary{})
		return
	}

	ctx, cancel := h.opCtx()
	defer cancel()

	chats, err := h.chats.ListConversations(ctx, client.UserID())
	if err != nil {
		h.log.Error("list conversations failed", zap.Error(err))
		client.Emit(relay.EventError, relay.ErrorPayload{Message: "Failed to list chats.", Code: relay.CodeProcessingError})
		return
	}
	client.Emit("chatsListed", chats)
}

func (h *Handler) renameChat(client *Client, data json.RawMessage) {
	var p struct {
		ChatID string `json:"chatId"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChatID == "" || p.Title == "" {
		client.Emit(relay.EventError, relay.ErrorPayload{Message: "chatId and title are required.", Code: relay.CodeBadRequest})
		return
	}

	ctx, cancel := h.opCtx()
	defer cancel()

	var owner *uint64
	if uid := client.UserID(); uid != 0 {
		owner = &uid
	}
	if err := h.chats.RenameConversation(ctx, p.ChatID, owner, p.Title); err != nil {
		h.emitChatOpError(client, p.ChatID, err, "Failed to rename chat.")
		return
	}
	client.Emit("chatRenamed", gin.H{"chatId": p.ChatID, "title": p.Title})
}

func (h *Handler) deleteChat(client *Client, data json.RawMessage) {
	room, ok := h.roomFrom(client, data)
	if !ok {
		return
	}

	ctx, cancel := h.opCtx()
	defer cancel()

	var owner *uint64
	if uid := client.UserID(); uid != 0 {
		owner = &uid
	}
	if err := h.chats.DeleteConversation(ctx, room, owner); err != nil {
		h.emitChatOpError(client, room, err, "Failed to delete chat.")
		return
	}
	h.rooms.Leave(client, room)
	client.Emit("chatDeleted", relay.RoomPayload{ChatID: room})
}

func (h *Handler) getHistory(client *Client, data json.RawMessage) {
	var p struct {
		ChatID   string `json:"chatId"`
		Limit    int    `json:"limit"`
		BeforeID uint64 `json:"beforeId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChatID == "" {
		client.Emit(relay.EventError, relay.ErrorPayload{Message: "chatId is required.", Code: relay.CodeBadRequest})
		return
	}

	ctx, cancel := h.opCtx()
	defer cancel()

	msgs, err := h.chats.History(ctx, p.ChatID, p.Limit, p.BeforeID)
	if err != nil {
		h.emitChatOpError(client, p.ChatID, err, "Failed to load history.")
		return
	}
	client.Emit("history", gin.H{"chatId": p.ChatID, "messages": msgs})
}

func (h *Handler) emitChatOpError(client *Client, chatID string, err error, fallback string) {
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		client.Emit(relay.EventError, relay.ErrorPayload{Message: "Chat not found.", Code: relay.CodeBadRequest, ChatID: chatID})
	case errors.Is(err, chat.ErrNotOwner):
		client.Emit(relay.EventError, relay.ErrorPayload{Message: "You do not own this chat.", Code: relay.CodeBadRequest, ChatID: chatID})
	default:
		h.log.Error("chat operation failed", zap.String("chat_id", chatID), zap.Error(err))
		client.Emit(relay.EventError, relay.ErrorPayload{Message: fallback, Code: relay.CodeProcessingError, ChatID: chatID})
	}
}

func (h *Handler) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
