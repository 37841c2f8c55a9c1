package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vortexchat/backend/internal/config"
	"github.com/vortexchat/backend/internal/gateway"
	"github.com/vortexchat/backend/internal/httpapi/handlers"
	"github.com/vortexchat/backend/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler, ws *gateway.Handler, log *zap.Logger) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "route not found", "data": nil})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": 40500, "message": "method not allowed", "data": nil})
	})

	r.GET("/health", h.Health)

	// WebSocket endpoint; auth is resolved inside (anonymous allowed)
	r.GET("/ws", ws.Serve)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/usage/stats", h.UsageStats)
	authGroup.GET("/chats", h.ListChats)
	authGroup.GET("/chats/:chat_id/messages", h.ListChatMessages)

	return r
}
