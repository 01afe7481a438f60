package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword produces a bcrypt hash without needing a service instance,
// for CLI tooling that seeds accounts.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(bytes), nil
}
