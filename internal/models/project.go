package models

import "time"

// Project statuses.
const (
	ProjectStatusDraft     = "draft"
	ProjectStatusGenerated = "generated"
	ProjectStatusArchived  = "archived"
)

// Project represents a user's software project described in natural language.
type Project struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Owning user ID.

	Name        string `gorm:"type:text;not null"` // Display name.
	Description string `gorm:"type:text"`          // Natural-language project description.

	GeneratedSpec string `gorm:"type:text"`                           // AI-generated scaffolding text, when present.
	Status        string `gorm:"type:text;not null;default:'draft'"` // Lifecycle status.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}
