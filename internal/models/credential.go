package models

import "time"

// ProviderCredential stores a user's encrypted upstream API key.
// At most one active record exists per (user, provider) pair; writes upsert.
type ProviderCredential struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID   uint64 `gorm:"not null;uniqueIndex:idx_credentials_user_provider"`           // Owning user ID.
	Provider string `gorm:"type:text;not null;uniqueIndex:idx_credentials_user_provider"` // Provider identifier.

	EncryptedKey []byte `gorm:"type:bytea;not null"` // AES-GCM ciphertext of the API key.

	LastUsed  *time.Time // Last generation attempt that resolved this key.
	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
