// Package crypt holds the salted hashing and symmetric encryption helpers
// used for email hashes and challenge tokens.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// Hash returns the salted SHA-256 digest of value. Used for email hashes so
// raw emails are never persisted.
func Hash(value, salt string) []byte {
	sum := sha256.Sum256([]byte(salt + value))
	return sum[:]
}

func gcmFor(salt string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(salt))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt symmetrically encrypts plaintext with a key derived from salt.
func Encrypt(plaintext []byte, salt string) ([]byte, error) {
	gcm, err := gcmFor(salt)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt for the same salt.
func Decrypt(ciphertext []byte, salt string) ([]byte, error) {
	gcm, err := gcmFor(salt)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
