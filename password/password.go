package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost = 12
	MaxLen      = 72 // bcrypt ignores anything past this
)

var ErrTooLong = errors.New("password exceeds 72 bytes and would be truncated by bcrypt")

// Hash returns a salted bcrypt hash of password.
func Hash(password string) (string, error) {
	if len(password) > MaxLen {
		return "", ErrTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// IsValid reports whether password matches hashed. A malformed hash never matches.
func IsValid(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}
