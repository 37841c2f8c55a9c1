package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vortexchat/backend/internal/chat"
)

// ListChats returns the caller's conversations, newest first.
func (h *Handler) ListChats(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	chats, err := h.ChatSvc.ListConversations(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50003, "failed to list chats")
		return
	}
	ok(c, gin.H{"chats": chats})
}

// ListChatMessages pages through one conversation's messages, oldest first.
func (h *Handler) ListChatMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	chatID := c.Param("chat_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	beforeID, _ := strconv.ParseUint(c.DefaultQuery("before_id", "0"), 10, 64)

	conv, err := h.ChatSvc.Conversation(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, 40401, "chat not found")
			return
		}
		fail(c, http.StatusInternalServerError, 50004, "failed to load chat")
		return
	}
	if conv.OwnerID != nil && *conv.OwnerID != uid {
		fail(c, http.StatusForbidden, 40301, "not the chat owner")
		return
	}

	msgs, err := h.ChatSvc.History(c.Request.Context(), chatID, limit, beforeID)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50005, "failed to load messages")
		return
	}
	ok(c, gin.H{"chat_id": chatID, "messages": msgs})
}
