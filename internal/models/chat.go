package models

import "time"

// Chat types
const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

// Chat represents a conversation between two or more participants
type Chat struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChatType  string    `json:"chat_type" gorm:"size:10"`
	Name      string    `json:"name" gorm:"size:100"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant links a user to a chat
type Participant struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	ChatID     uint       `json:"chat_id" gorm:"uniqueIndex:idx_chat_user;index"`
	UserID     uint       `json:"user_id" gorm:"uniqueIndex:idx_chat_user"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastReadAt *time.Time `json:"last_read_at"`
}

// Message is a durable chat message
type Message struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChatID    uint      `json:"chat_id" gorm:"index"`
	SenderID  uint      `json:"sender_id" gorm:"index"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
