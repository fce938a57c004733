package store

import (
	"context"
	"errors"

	"projectlink/backend/internal/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Gateway is the durable store contract the chat subsystem consumes.
// Chats, messages and participants are owned by the surrounding CRUD layer;
// the chat subsystem only reads membership and writes drained messages.
type Gateway interface {
	GetChat(ctx context.Context, chatID uint) (*models.Chat, error)
	IsParticipant(ctx context.Context, chatID, userID uint) (bool, error)
	ListParticipants(ctx context.Context, chatID, excludeUserID uint) ([]uint, error)
	CreateMessages(ctx context.Context, messages []models.Message, commit func() error) error
	ListMessages(ctx context.Context, chatID uint, limit, offset int) ([]models.Message, error)
	CountMessages(ctx context.Context, chatID uint) (int64, error)
	ResolveUser(ctx context.Context, userID uint) (*models.User, error)
}

// GormGateway implements Gateway against PostgreSQL
type GormGateway struct {
	db *gorm.DB
}

func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

func (g *GormGateway) GetChat(ctx context.Context, chatID uint) (*models.Chat, error) {
	var chat models.Chat
	err := g.db.WithContext(ctx).First(&chat, chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (g *GormGateway) IsParticipant(ctx context.Context, chatID, userID uint) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.Participant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	return count > 0, err
}

func (g *GormGateway) ListParticipants(ctx context.Context, chatID, excludeUserID uint) ([]uint, error) {
	var userIDs []uint
	err := g.db.WithContext(ctx).Model(&models.Participant{}).
		Where("chat_id = ? AND user_id <> ?", chatID, excludeUserID).
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

// CreateMessages inserts a batch of messages in one transaction. commit runs
// inside the transaction after the inserts; if it fails the inserts are
// rolled back, so the caller's bookkeeping and the durable rows move
// together or not at all.
func (g *GormGateway) CreateMessages(ctx context.Context, messages []models.Message, commit func() error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&messages).Error; err != nil {
			return err
		}
		return commit()
	})
}

func (g *GormGateway) ListMessages(ctx context.Context, chatID uint, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := g.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, err
}

func (g *GormGateway) CountMessages(ctx context.Context, chatID uint) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ?", chatID).
		Count(&count).Error
	return count, err
}

func (g *GormGateway) ResolveUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := g.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
