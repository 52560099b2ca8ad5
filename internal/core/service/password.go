package service

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/empireo/brain/internal/core/domain"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

func hashPassword(password string, cost, minLength int) (string, error) {
	if utf8.RuneCountInString(password) < minLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minLength)
	}
	if len(password) > maxPasswordBytes {
		return "", fmt.Errorf("%w: password must be at most %d bytes", domain.ErrValidation, maxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
