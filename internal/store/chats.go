package store

import (
	"context"
	"time"

	"projectlink/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CRUD support consumed by the HTTP surface. Kept separate from the Gateway
// contract so the cache, hub and scheduler depend only on what they use.

func (g *GormGateway) CreateChat(ctx context.Context, chatType, name string, creatorID uint) (*models.Chat, error) {
	chat := &models.Chat{
		ChatType:  chatType,
		Name:      name,
		CreatedAt: time.Now(),
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return err
		}
		participant := &models.Participant{
			ChatID:   chat.ID,
			UserID:   creatorID,
			JoinedAt: time.Now(),
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(participant).Error
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (g *GormGateway) AddParticipant(ctx context.Context, chatID, userID uint) error {
	participant := &models.Participant{
		ChatID:   chatID,
		UserID:   userID,
		JoinedAt: time.Now(),
	}
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(participant).Error
}

func (g *GormGateway) ListChats(ctx context.Context, userID uint) ([]models.Chat, error) {
	var chats []models.Chat
	err := g.db.WithContext(ctx).
		Joins("JOIN participants ON participants.chat_id = chats.id").
		Where("participants.user_id = ?", userID).
		Order("chats.created_at DESC").
		Find(&chats).Error
	return chats, err
}
