package credentials

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aiforge/aiforge/internal/models"
	"github.com/aiforge/aiforge/internal/security"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound indicates no stored credential exists for the pair.
var ErrNotFound = errors.New("credential not found")

// Store persists per-user provider credentials, encrypted at rest.
type Store struct {
	db     *gorm.DB
	cipher *security.Cipher
}

// NewStore constructs a credential store.
func NewStore(db *gorm.DB, cipher *security.Cipher) *Store {
	return &Store{db: db, cipher: cipher}
}

// KeyInfo describes a stored credential without revealing the key.
type KeyInfo struct {
	Provider  string     `json:"provider"`
	MaskedKey string     `json:"masked_key"`
	LastUsed  *time.Time `json:"last_used"`
	CreatedAt time.Time  `json:"created_at"`
}

// Save encrypts and upserts the credential for (user, provider).
// A second save for the same pair replaces the stored key.
func (s *Store) Save(ctx context.Context, userID uint64, provider, key string) error {
	ciphertext, errEncrypt := s.cipher.Encrypt(key)
	if errEncrypt != nil {
		return errEncrypt
	}
	now := time.Now().UTC()
	row := models.ProviderCredential{
		UserID:       userID,
		Provider:     strings.TrimSpace(provider),
		EncryptedKey: ciphertext,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_key", "updated_at"}),
	}).Create(&row).Error
}

// Get decrypts and returns the stored key for (user, provider).
func (s *Store) Get(ctx context.Context, userID uint64, provider string) (string, error) {
	var row models.ProviderCredential
	errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, strings.TrimSpace(provider)).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", errFind
	}
	return s.cipher.Decrypt(row.EncryptedKey)
}

// List returns masked credential info for a user.
func (s *Store) List(ctx context.Context, userID uint64) ([]KeyInfo, error) {
	var rows []models.ProviderCredential
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("provider").
		Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	out := make([]KeyInfo, 0, len(rows))
	for _, row := range rows {
		masked := "******"
		if plain, errDecrypt := s.cipher.Decrypt(row.EncryptedKey); errDecrypt == nil {
			masked = security.MaskKey(plain)
		}
		out = append(out, KeyInfo{
			Provider:  row.Provider,
			MaskedKey: masked,
			LastUsed:  row.LastUsed,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// Delete removes the credential for (user, provider).
func (s *Store) Delete(ctx context.Context, userID uint64, provider string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, strings.TrimSpace(provider)).
		Delete(&models.ProviderCredential{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch updates last_used for (user, provider). Missing rows are a no-op:
// the attempt may have used the process-wide fallback key.
func (s *Store) Touch(ctx context.Context, userID uint64, provider string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&models.ProviderCredential{}).
		Where("user_id = ? AND provider = ?", userID, strings.TrimSpace(provider)).
		Update("last_used", now).Error
}
