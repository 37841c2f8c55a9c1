package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vortexchat/backend/internal/chat"
	"github.com/vortexchat/backend/internal/httpapi/middleware"
	"github.com/vortexchat/backend/internal/subscription"
	"github.com/vortexchat/backend/internal/usage"
)

type Handler struct {
	ChatSvc *chat.Service
	Usage   *usage.Ledger
	Subs    *subscription.Service
	Log     *zap.Logger
}

func NewHandler(chatSvc *chat.Service, ledger *usage.Ledger, subs *subscription.Service, log *zap.Logger) *Handler {
	return &Handler{ChatSvc: chatSvc, Usage: ledger, Subs: subs, Log: log}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

func (h *Handler) Health(c *gin.Context) {
	ok(c, gin.H{"status": "up"})
}
