// Package cryptutil implements the client-side cryptography for syncagent:
// Argon2id master-key derivation and AES-256-GCM chunk sealing.
// No plaintext or derived key ever leaves this package's callers' memory —
// the server sees only sealed chunk bytes.
package cryptutil

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters: t=3, m=64MiB, p=4.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	// KeySize is the derived AES-256 key length in bytes.
	KeySize = 32
	// SaltSize is the recommended Argon2id salt length in bytes.
	SaltSize = 16
)

// DeriveKey derives a 32-byte AES-256 key from masterPassword and salt using
// Argon2id. The same (password, salt) pair always yields the same key —
// callers persist the salt (not the password) alongside the sealed keyfile.
func DeriveKey(masterPassword string, salt []byte) []byte {
	return argon2.IDKey([]byte(masterPassword), salt, argonTime, argonMemory, argonThreads, KeySize)
}

// NewSalt generates a fresh random salt suitable for DeriveKey.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("cryptutil: generating salt: %w", err)
	}

	return salt, nil
}

// NewDataKey generates a fresh random 32-byte AES-256 key. Used to create the
// per-installation data encryption key that is itself wrapped (AES-GCM
// sealed) under the Argon2id-derived key before being written to disk —
// so changing the master password never requires re-encrypting every chunk.
func NewDataKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("cryptutil: generating data key: %w", err)
	}

	return key, nil
}
