package security

import "golang.org/x/crypto/bcrypt"

// passwordHashCost is the bcrypt work factor for stored account passwords.
const passwordHashCost = 12

// HashPassword returns the bcrypt hash of an account password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
