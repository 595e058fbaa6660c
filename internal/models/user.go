package models

import "time"

// User represents a registered account.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text"`                      // Contact email.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Active  bool `gorm:"not null;default:true"`  // Whether the user can sign in.
	IsAdmin bool `gorm:"not null;default:false"` // Grants access to admin endpoints.

	TOTPSecret string `gorm:"type:text"`              // TOTP secret when MFA is enabled.
	MFAEnabled bool   `gorm:"not null;default:false"` // Whether TOTP verification is required at login.

	TotalTokens int64 `gorm:"not null;default:0"` // Running token counter across all generations.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
