package api

import (
	"net/http"
	"strconv"

	"projectlink/backend/internal/models"
	"projectlink/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

type createChatRequest struct {
	ChatType string `json:"chat_type" binding:"required,oneof=private group"`
	Name     string `json:"name"`
}

// CreateChat creates a chat with the caller as its first participant
func (h *Handler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", "chat_type must be private or group"))
		return
	}

	chat, err := h.store.CreateChat(c.Request.Context(), req.ChatType, req.Name, callerID(c))
	if err != nil {
		c.Error(errors.NewInternalServerError("CHAT_CREATE_FAILED", "Failed to create chat"))
		return
	}

	c.JSON(http.StatusCreated, chat)
}

// ListChats returns every chat the caller participates in
func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.store.ListChats(c.Request.Context(), callerID(c))
	if err != nil {
		c.Error(errors.NewInternalServerError("CHAT_LIST_FAILED", "Failed to list chats"))
		return
	}
	if chats == nil {
		chats = []models.Chat{}
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

type addParticipantRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// AddParticipant adds a user to a chat the caller belongs to
func (h *Handler) AddParticipant(c *gin.Context) {
	chatID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.NewBadRequestError("INVALID_CHAT_ID", "Chat id must be numeric"))
		return
	}

	var req addParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError("INVALID_REQUEST", "user_id is required"))
		return
	}

	ctx := c.Request.Context()

	isMember, err := h.store.IsParticipant(ctx, uint(chatID), callerID(c))
	if err != nil {
		c.Error(errors.NewInternalServerError("MEMBERSHIP_CHECK_FAILED", "Failed to check membership"))
		return
	}
	if !isMember {
		c.Error(errors.NewForbiddenError("NOT_A_PARTICIPANT", "You are not a participant of this chat"))
		return
	}

	if err := h.store.AddParticipant(ctx, uint(chatID), req.UserID); err != nil {
		c.Error(errors.NewInternalServerError("PARTICIPANT_ADD_FAILED", "Failed to add participant"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success"})
}
