package api

import (
	"net/http"
	"strconv"

	"projectlink/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// GetUnread returns every unread notice for the caller across chats
func (h *Handler) GetUnread(c *gin.Context) {
	notices, err := h.cache.UnreadFor(c.Request.Context(), callerID(c))
	if err != nil {
		c.Error(errors.NewInternalServerError("UNREAD_FETCH_FAILED", "Failed to fetch unread messages"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"unread_messages": notices,
		"total_count":     len(notices),
	})
}

// GetUnreadCount returns the caller's total unread notice count
func (h *Handler) GetUnreadCount(c *gin.Context) {
	count, err := h.cache.UnreadCount(c.Request.Context(), callerID(c))
	if err != nil {
		c.Error(errors.NewInternalServerError("UNREAD_COUNT_FAILED", "Failed to count unread messages"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead acknowledges every message in the chat for the caller
func (h *Handler) MarkRead(c *gin.Context) {
	chatID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.NewBadRequestError("INVALID_CHAT_ID", "Chat id must be numeric"))
		return
	}

	if err := h.cache.Acknowledge(c.Request.Context(), uint(chatID), callerID(c)); err != nil {
		c.Error(errors.NewInternalServerError("MARK_READ_FAILED", "Failed to mark messages as read"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
