package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Cipher encrypts and decrypts stored provider credentials with AES-256-GCM.
type Cipher struct {
	key []byte
}

// kdfSalt is fixed: the passphrase is a system-wide secret, not a per-user password.
var kdfSalt = []byte("aiforge-credential-cipher-v1")

// ErrPassphraseEmpty indicates no encryption passphrase was configured.
var ErrPassphraseEmpty = errors.New("encryption passphrase is empty")

// NewCipher derives a 32-byte AES key from the passphrase using argon2id.
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, ErrPassphraseEmpty
	}
	key := argon2.IDKey([]byte(passphrase), kdfSalt, 1, 64*1024, 4, 32)
	return &Cipher{key: key}, nil
}

// Encrypt seals plaintext and prepends the random nonce to the ciphertext.
func (c *Cipher) Encrypt(plaintext string) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens ciphertext produced by Encrypt.
func (c *Cipher) Decrypt(ciphertext []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// MaskKey renders an API key for display without revealing it.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "******"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
