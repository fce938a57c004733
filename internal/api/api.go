// Package api exposes the chat subsystem to the CRUD layer: unread
// queries, read acknowledgment, merged message history and the drain
// trigger consumed by the external job runner.
package api

import (
	"context"

	"projectlink/backend/internal/chat"
	"projectlink/backend/internal/models"
	"projectlink/backend/internal/scheduler"
	"projectlink/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Store is the durable-store surface the handlers consume
type Store interface {
	GetChat(ctx context.Context, chatID uint) (*models.Chat, error)
	IsParticipant(ctx context.Context, chatID, userID uint) (bool, error)
	ListParticipants(ctx context.Context, chatID, excludeUserID uint) ([]uint, error)
	ListMessages(ctx context.Context, chatID uint, limit, offset int) ([]models.Message, error)
	CountMessages(ctx context.Context, chatID uint) (int64, error)
	CreateChat(ctx context.Context, chatType, name string, creatorID uint) (*models.Chat, error)
	AddParticipant(ctx context.Context, chatID, userID uint) error
	ListChats(ctx context.Context, userID uint) ([]models.Chat, error)
}

type Handler struct {
	cache     *chat.MessageCache
	store     Store
	scheduler *scheduler.Scheduler
	log       *logger.Logger
}

func NewHandler(cache *chat.MessageCache, store Store, sched *scheduler.Scheduler, log *logger.Logger) *Handler {
	return &Handler{
		cache:     cache,
		store:     store,
		scheduler: sched,
		log:       log,
	}
}

// callerID returns the authenticated user id set by the auth middleware
func callerID(c *gin.Context) uint {
	if id, exists := c.Get("userID"); exists {
		if userID, ok := id.(uint); ok {
			return userID
		}
	}
	return 0
}
