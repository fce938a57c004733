package models

import "time"

// User is the directory record supplied by the external identity provider.
// Only the fields the chat layer needs are mirrored here.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}
