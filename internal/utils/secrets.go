package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// GenerateSecret generates a hex encoded secret from the given number of random bytes
func GenerateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// LocalSecrets are the secrets an operator generates rather than receives from the bank
type LocalSecrets struct {
	JWTSecret string
	// AESKey and AESIV are only for sandbox use; production values come from the bank
	AESKey string
	AESIV  string
}

// GenerateLocalSecrets generates a JWT secret and a sandbox AES key/IV pair
func GenerateLocalSecrets() (LocalSecrets, error) {
	var secrets LocalSecrets
	var err error

	if secrets.JWTSecret, err = GenerateSecret(32); err != nil {
		return LocalSecrets{}, fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	// 16 random bytes hex encode to the 32 characters AES-256 expects
	if secrets.AESKey, err = GenerateSecret(16); err != nil {
		return LocalSecrets{}, fmt.Errorf("failed to generate AES key: %w", err)
	}
	if secrets.AESIV, err = GenerateSecret(8); err != nil {
		return LocalSecrets{}, fmt.Errorf("failed to generate AES IV: %w", err)
	}

	return secrets, nil
}

// HashAdminPassword returns the bcrypt hash stored in ADMIN_PASSWORD_HASH
func HashAdminPassword(password string) (string, error) {
	if len(password) < 6 {
		return "", fmt.Errorf("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
