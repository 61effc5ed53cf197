package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DeriveKey Tests
// =============================================================================

func TestDeriveKey(t *testing.T) {
	key, err := DeriveKey("my-master-secret")
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestDeriveKey_Deterministic(t *testing.T) {
	key1, err := DeriveKey("same-secret")
	require.NoError(t, err)
	key2, err := DeriveKey("same-secret")
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestDeriveKey_DifferentInput(t *testing.T) {
	key1, err := DeriveKey("secret1")
	require.NoError(t, err)
	key2, err := DeriveKey("secret2")
	require.NoError(t, err)
	assert.NotEqual(t, key1, key2)
}

// =============================================================================
// Encrypt/Decrypt Tests
// =============================================================================

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := DeriveKey("test-encryption-key")
	require.NoError(t, err)
	return key
}

func TestEncrypt_Decrypt_Roundtrip(t *testing.T) {
	plaintext := []byte(`{"username":"admin","password":"s3cret"}`)
	key := testKey(t)

	ciphertext, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncrypt_KeyTooShort(t *testing.T) {
	_, err := Encrypt([]byte("data"), []byte("short"))
	assert.ErrorIs(t, err, ErrKeyTooShort)
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	key := testKey(t)
	c1, err := Encrypt([]byte("data"), key)
	require.NoError(t, err)
	c2, err := Encrypt([]byte("data"), key)
	require.NoError(t, err)
	// Random nonce: same plaintext never encrypts to the same bytes.
	assert.NotEqual(t, c1, c2)
}

func TestDecrypt_WrongKey(t *testing.T) {
	key := testKey(t)
	ciphertext, err := Encrypt([]byte("data"), key)
	require.NoError(t, err)

	wrongKey, err := DeriveKey("another-secret")
	require.NoError(t, err)
	_, err = Decrypt(ciphertext, wrongKey)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_Tampered(t *testing.T) {
	key := testKey(t)
	ciphertext, err := Encrypt([]byte("data"), key)
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0xff
	_, err = Decrypt(ciphertext, key)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_TooShort(t *testing.T) {
	_, err := Decrypt([]byte("tiny"), testKey(t))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

// =============================================================================
// Base64 Variant Tests
// =============================================================================

func TestEncryptToBase64_Roundtrip(t *testing.T) {
	key := testKey(t)

	encoded, err := EncryptToBase64([]byte("credentials"), key)
	require.NoError(t, err)

	decrypted, err := DecryptFromBase64(encoded, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("credentials"), decrypted)
}

func TestDecryptFromBase64_InvalidEncoding(t *testing.T) {
	_, err := DecryptFromBase64("!!!not-base64!!!", testKey(t))
	assert.Error(t, err)
}
