package models

import "time"

// Reminder stores a scheduled reminder for a user.
type Reminder struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Owning user ID.

	Title       string `gorm:"type:text;not null"` // Short title.
	Description string `gorm:"type:text"`          // Optional details.

	RemindAt time.Time `gorm:"not null;index"`        // When the reminder fires.
	IsActive bool      `gorm:"not null;default:true"` // Whether the reminder is still pending.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
