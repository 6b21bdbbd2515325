package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateLocalSecrets(t *testing.T) {
	secrets, err := GenerateLocalSecrets()
	require.NoError(t, err)

	assert.Len(t, secrets.JWTSecret, 64)
	assert.Len(t, secrets.AESKey, 32)
	assert.Len(t, secrets.AESIV, 16)

	again, err := GenerateLocalSecrets()
	require.NoError(t, err)
	assert.NotEqual(t, secrets.JWTSecret, again.JWTSecret)
}

func TestHashAdminPassword(t *testing.T) {
	hash, err := HashAdminPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass")))

	_, err = HashAdminPassword("short")
	assert.Error(t, err)
}
