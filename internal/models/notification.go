package models

import "time"

// Notification stores an in-app notification for a user.
type Notification struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Owning user ID.

	Title   string `gorm:"type:text;not null"` // Short title.
	Message string `gorm:"type:text"`          // Notification body.

	IsRead bool `gorm:"not null;default:false"` // Read flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
