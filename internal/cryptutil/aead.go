package cryptutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// NonceSize is the AES-GCM nonce length in bytes (96 bits).
const NonceSize = 12

// ErrDecryptFailed is returned when GCM authentication fails — tamper or
// corruption, never ignorable.
var ErrDecryptFailed = errors.New("cryptutil: decryption failed (authentication mismatch)")

// Seal encrypts plaintext under key with a fresh random nonce and returns
// nonce || ciphertext || tag, the wire format used for an encrypted chunk
// payload. Nonce reuse under the same key is forbidden — Seal always draws a
// new nonce from crypto/rand so the caller cannot reuse one by accident.
func Seal(key, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptutil: generating nonce: %w", err)
	}

	out := aead.Seal(nonce, nonce, plaintext, nil)

	return out, nil
}

// Open decrypts a nonce||ciphertext||tag blob produced by Seal. Returns
// ErrDecryptFailed on any authentication failure (truncated input, tamper,
// wrong key) — the caller must treat this as a fatal, non-retryable error
// for the chunk in question.
func Open(key, sealed []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < NonceSize {
		return nil, ErrDecryptFailed
	}

	nonce, ciphertext := sealed[:NonceSize], sealed[NonceSize:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cryptutil: key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptutil: creating AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptutil: creating GCM: %w", err)
	}

	return aead, nil
}
