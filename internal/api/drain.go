package api

import (
	"net/http"
	"strconv"

	"projectlink/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// TriggerDrain runs the persistence job immediately: one chat when
// chat_id is given, otherwise a sweep over every chat with staged
// messages. Intended for the external job runner and administrative use.
func (h *Handler) TriggerDrain(c *gin.Context) {
	var chatID *uint
	if raw := c.Query("chat_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.Error(errors.NewBadRequestError("INVALID_CHAT_ID", "chat_id must be numeric"))
			return
		}
		id := uint(parsed)
		chatID = &id
	}

	persisted, err := h.scheduler.Run(c.Request.Context(), chatID)
	if err != nil {
		c.Error(errors.NewInternalServerError("DRAIN_FAILED", "Failed to persist staged messages"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"persisted": persisted})
}

// EvictChat removes a chat's staged list without persisting it.
// Administrative cleanup only; unread indices are untouched.
func (h *Handler) EvictChat(c *gin.Context) {
	chatID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.NewBadRequestError("INVALID_CHAT_ID", "Chat id must be numeric"))
		return
	}

	if err := h.cache.Evict(c.Request.Context(), uint(chatID)); err != nil {
		c.Error(errors.NewInternalServerError("EVICT_FAILED", "Failed to evict staged messages"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
