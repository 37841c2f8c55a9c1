package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UsageStats reports today's and lifetime usage plus the caller's tier limits.
func (h *Handler) UsageStats(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	stats, err := h.Usage.UserStats(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50001, "failed to load usage stats")
		return
	}
	limits, err := h.Subs.LimitsForUser(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50002, "failed to load limits")
		return
	}

	remaining := limits.MessagesPerDay - stats.TodayMessages
	if remaining < 0 {
		remaining = 0
	}
	ok(c, gin.H{
		"today_messages":   stats.TodayMessages,
		"today_tokens":     stats.TodayTokens,
		"total_messages":   stats.TotalMessages,
		"total_tokens":     stats.TotalTokens,
		"messages_per_day": limits.MessagesPerDay,
		"remaining_today":  remaining,
	})
}
