package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("password1")
	require.NoError(t, err)
	require.NotEqual(t, "password1", hash)

	require.True(t, VerifyPassword(hash, "password1"))
	require.False(t, VerifyPassword(hash, "password2"))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	ciphertext, err := Encrypt([]byte("secret value"), key)
	require.NoError(t, err)
	require.NotContains(t, ciphertext, "secret value")

	plaintext, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	require.Equal(t, "secret value", string(plaintext))
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	other := []byte("fedcba9876543210fedcba9876543210")

	ciphertext, err := Encrypt([]byte("secret value"), key)
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, other)
	require.Error(t, err)
}

func TestEncryptRejectsBadKeyLength(t *testing.T) {
	_, err := Encrypt([]byte("data"), []byte("short"))
	require.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	_, err := Decrypt("not-base64!!", key)
	require.Error(t, err)

	_, err = Decrypt("c2hvcnQ=", key)
	require.Error(t, err)
}
