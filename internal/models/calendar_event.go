package models

import "time"

// CalendarEvent stores a calendar entry for a user.
type CalendarEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Owning user ID.

	Title       string `gorm:"type:text;not null"` // Event title.
	Description string `gorm:"type:text"`          // Optional details.

	StartsAt time.Time  `gorm:"not null;index"` // Event start time.
	EndsAt   *time.Time // Optional event end time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
