package keystore

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/syncagent/syncagent/internal/cryptutil"
)

// FilePerms restricts the keyfile to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the keyfile's parent directory.
const DirPerms = 0o700

// keyfile is the on-disk, at-rest format: the data key, AES-GCM sealed under
// an Argon2id key derived from the master password. Salt is stored alongside
// in the clear — derivation is useless without the password.
type keyfile struct {
	Salt   string `json:"salt"`   // base64
	Sealed string `json:"sealed"` // base64, cryptutil.Seal output
}

// LocalStore is the default Keystore implementation: a single encrypted
// keyfile on local disk.
type LocalStore struct {
	path string

	mu  sync.Mutex
	key []byte // nil when locked
}

// NewLocalStore returns a Keystore backed by the keyfile at path.
func NewLocalStore(path string) *LocalStore {
	return &LocalStore{path: path}
}

// Bootstrap creates a new keyfile at the store's path, generating a fresh
// random data key and sealing it under masterPassword. Fails if a keyfile
// already exists at that path — callers must Import or choose a new path to
// avoid silently discarding an existing encrypted sync root's key.
func (s *LocalStore) Bootstrap(masterPassword string) error {
	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("keystore: keyfile already exists at %s", s.path)
	}

	dataKey, err := cryptutil.NewDataKey()
	if err != nil {
		return err
	}

	return s.writeKeyfile(masterPassword, dataKey)
}

// Unlock implements Keystore.Unlock: derive the Argon2id key from
// masterPassword and the stored salt, then open the sealed data key. Returns
// cryptutil.ErrDecryptFailed wrapped if masterPassword is wrong.
func (s *LocalStore) Unlock(masterPassword string) ([]byte, error) {
	kf, err := s.readKeyfile()
	if err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(kf.Salt)
	if err != nil {
		return nil, fmt.Errorf("keystore: decoding salt: %w", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(kf.Sealed)
	if err != nil {
		return nil, fmt.Errorf("keystore: decoding sealed key: %w", err)
	}

	kek := cryptutil.DeriveKey(masterPassword, salt)

	dataKey, err := cryptutil.Open(kek, sealed)
	if err != nil {
		return nil, fmt.Errorf("keystore: unlocking (wrong password?): %w", err)
	}

	s.mu.Lock()
	s.key = dataKey
	s.mu.Unlock()

	return dataKey, nil
}

// Lock implements Keystore.Lock: discard the in-memory data key.
func (s *LocalStore) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.key {
		s.key[i] = 0
	}

	s.key = nil
}

// Key returns the currently unlocked data key, or ErrLocked if Unlock has
// not been called (or Lock has since been called).
func (s *LocalStore) Key() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == nil {
		return nil, ErrLocked
	}

	return s.key, nil
}

// Export implements Keystore.Export: the raw keyfile contents, base64
// encoded, suitable for transcribing or transmitting out-of-band to
// bootstrap a second client onto the same encrypted sync root. The exported
// blob is only as strong as the master password — it must still be combined
// with Import(..., masterPassword) to recover the data key.
func (s *LocalStore) Export() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("keystore: reading keyfile: %w", err)
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// Import implements Keystore.Import: decode encoded, verify masterPassword
// actually opens it, and persist it as this store's keyfile.
func (s *LocalStore) Import(encoded, masterPassword string) error {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("keystore: decoding import blob: %w", err)
	}

	var kf keyfile
	if err := json.Unmarshal(data, &kf); err != nil {
		return fmt.Errorf("keystore: decoding imported keyfile: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(kf.Salt)
	if err != nil {
		return fmt.Errorf("keystore: decoding imported salt: %w", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(kf.Sealed)
	if err != nil {
		return fmt.Errorf("keystore: decoding imported sealed key: %w", err)
	}

	kek := cryptutil.DeriveKey(masterPassword, salt)

	if _, err := cryptutil.Open(kek, sealed); err != nil {
		return fmt.Errorf("keystore: imported keyfile rejects master password: %w", err)
	}

	return atomicWriteFile(s.path, data)
}

func (s *LocalStore) readKeyfile() (*keyfile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("keystore: no keyfile at %s (run bootstrap/import first)", s.path)
	}

	if err != nil {
		return nil, fmt.Errorf("keystore: reading keyfile: %w", err)
	}

	var kf keyfile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("keystore: decoding keyfile: %w", err)
	}

	return &kf, nil
}

func (s *LocalStore) writeKeyfile(masterPassword string, dataKey []byte) error {
	salt, err := cryptutil.NewSalt()
	if err != nil {
		return err
	}

	kek := cryptutil.DeriveKey(masterPassword, salt)

	sealed, err := cryptutil.Seal(kek, dataKey)
	if err != nil {
		return fmt.Errorf("keystore: sealing data key: %w", err)
	}

	kf := keyfile{
		Salt:   base64.StdEncoding.EncodeToString(salt),
		Sealed: base64.StdEncoding.EncodeToString(sealed),
	}

	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("keystore: encoding keyfile: %w", err)
	}

	return atomicWriteFile(s.path, data)
}

// atomicWriteFile writes data to path via write-to-temp + fsync + rename:
// never leaves a partially written keyfile on disk even across a crash
// mid-write.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("keystore: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".keyfile-*.tmp")
	if err != nil {
		return fmt.Errorf("keystore: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("keystore: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("keystore: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("keystore: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("keystore: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("keystore: renaming: %w", err)
	}

	success = true

	return nil
}
