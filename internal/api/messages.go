package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"projectlink/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	wireTimeLayout  = "2006-01-02 15:04:05"
)

// messageView is the wire shape of one history entry
type messageView struct {
	SenderID  uint   `json:"sender_id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
	IsOwn     bool   `json:"is_own"`

	createdAt time.Time
}

// ListMessages returns the chat's history: durable messages merged with
// staged ones not yet persisted, newest first. Reading the history counts
// as catching up, so the chat is acknowledged for the caller.
func (h *Handler) ListMessages(c *gin.Context) {
	chatIDRaw, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.NewBadRequestError("INVALID_CHAT_ID", "Chat id must be numeric"))
		return
	}
	chatID := uint(chatIDRaw)
	userID := callerID(c)
	ctx := c.Request.Context()

	isMember, err := h.store.IsParticipant(ctx, chatID, userID)
	if err != nil {
		c.Error(errors.NewInternalServerError("MEMBERSHIP_CHECK_FAILED", "Failed to check membership"))
		return
	}
	if !isMember {
		c.Error(errors.NewForbiddenError("NOT_A_PARTICIPANT", "You are not a participant of this chat"))
		return
	}

	pageSize := defaultPageSize
	if raw := c.Query("page_size"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			pageSize = min(v, maxPageSize)
		}
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}

	// offset+pageSize durable rows always cover the requested page:
	// staged entries only push durable rows further down the merged list.
	durable, err := h.store.ListMessages(ctx, chatID, offset+pageSize, 0)
	if err != nil {
		c.Error(errors.NewInternalServerError("HISTORY_FETCH_FAILED", "Failed to fetch message history"))
		return
	}

	durableTotal, err := h.store.CountMessages(ctx, chatID)
	if err != nil {
		c.Error(errors.NewInternalServerError("HISTORY_COUNT_FAILED", "Failed to count message history"))
		return
	}

	staged, err := h.cache.ListStaged(ctx, chatID)
	if err != nil {
		c.Error(errors.NewInternalServerError("CACHE_FETCH_FAILED", "Failed to fetch staged messages"))
		return
	}

	if err := h.cache.Acknowledge(ctx, chatID, userID); err != nil {
		c.Error(errors.NewInternalServerError("MARK_READ_FAILED", "Failed to mark messages as read"))
		return
	}

	views := make([]messageView, 0, len(durable)+len(staged))
	for _, m := range durable {
		views = append(views, messageView{
			SenderID:  m.SenderID,
			Message:   m.Content,
			CreatedAt: m.CreatedAt.Format(wireTimeLayout),
			IsOwn:     m.SenderID == userID,
			createdAt: m.CreatedAt,
		})
	}
	nonDurable := 0
	for _, m := range staged {
		if m.Durable {
			// Already counted with the durable rows.
			continue
		}
		nonDurable++
		views = append(views, messageView{
			SenderID:  m.SenderID,
			Message:   m.Body,
			CreatedAt: m.Timestamp.Format(wireTimeLayout),
			IsOwn:     m.SenderID == userID,
			createdAt: m.Timestamp,
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].createdAt.After(views[j].createdAt)
	})

	end := min(offset+pageSize, len(views))
	if offset > len(views) {
		offset = len(views)
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":    views[offset:end],
		"total_count": int(durableTotal) + nonDurable,
	})
}
