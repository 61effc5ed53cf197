// Package crypto provides encryption utilities for sensitive data like
// resolved database credentials. This is part of the Functional Core -
// all functions are pure with no I/O.
//
// Credentials are encrypted at rest using AES-256-GCM. The encryption key
// is derived from the platform master secret with scrypt.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrKeyTooShort is returned when the encryption key is too short.
	ErrKeyTooShort = errors.New("encryption key must be at least 32 bytes")

	// ErrInvalidCiphertext is returned when decryption fails due to invalid ciphertext.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short")

	// ErrDecryptionFailed is returned when decryption fails (wrong key or corrupted data).
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// =============================================================================
// Key Derivation
// =============================================================================

// keySalt is a fixed application salt for key derivation. Deriving from a
// per-record salt is unnecessary here: the master secret is high-entropy
// platform configuration, not a user password.
var keySalt = []byte("skiff.credentials.v1")

// DeriveKey derives a 32-byte AES-256 key from the master secret using
// scrypt. Deterministic: the same secret always produces the same key.
func DeriveKey(masterSecret string) ([]byte, error) {
	key, err := scrypt.Key([]byte(masterSecret), keySalt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// =============================================================================
// AES-256-GCM Encryption
// =============================================================================

// Encrypt encrypts plaintext using AES-256-GCM with the provided key.
// The key must be at least 32 bytes; only the first 32 are used.
//
// The ciphertext format is: nonce (12 bytes) || encrypted data || auth tag (16 bytes)
func Encrypt(plaintext, key []byte) ([]byte, error) {
	if len(key) < 32 {
		return nil, ErrKeyTooShort
	}
	key = key[:32]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext that was encrypted with Encrypt.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	if len(key) < 32 {
		return nil, ErrKeyTooShort
	}
	key = key[:32]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// =============================================================================
// Base64 Encoding Variants
// =============================================================================

// EncryptToBase64 encrypts plaintext and returns base64-encoded ciphertext.
// Useful for storing encrypted data in text fields (JSON, database rows).
func EncryptToBase64(plaintext, key []byte) (string, error) {
	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptFromBase64 decrypts base64-encoded ciphertext.
func DecryptFromBase64(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	return Decrypt(ciphertext, key)
}
