package crypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	a := Hash("user@example.com", "salt")
	assert.Len(t, a, 32)

	// deterministic
	assert.Equal(t, a, Hash("user@example.com", "salt"))

	// salted
	assert.NotEqual(t, a, Hash("user@example.com", "other-salt"))
	assert.NotEqual(t, a, Hash("other@example.com", "salt"))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("2026-08-30T12:00:00.000000000Z")

	ciphertext, err := Encrypt(plaintext, "salt")
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	got, err := Decrypt(ciphertext, "salt")
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptWrongSalt(t *testing.T) {
	ciphertext, err := Encrypt([]byte("payload"), "salt")
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, "other-salt")
	require.Error(t, err)
}

func TestDecryptTampered(t *testing.T) {
	ciphertext, err := Encrypt([]byte("payload"), "salt")
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0xff
	_, err = Decrypt(ciphertext, "salt")
	require.Error(t, err)
}

func TestDecryptTooShort(t *testing.T) {
	_, err := Decrypt([]byte{0x01, 0x02}, "salt")
	require.Error(t, err)
}
