package keystore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapUnlockRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyfile")
	store := NewLocalStore(path)

	require.NoError(t, store.Bootstrap("correct horse battery staple"))

	_, err := store.Key()
	assert.ErrorIs(t, err, ErrLocked)

	key, err := store.Unlock("correct horse battery staple")
	require.NoError(t, err)
	assert.Len(t, key, 32)

	got, err := store.Key()
	require.NoError(t, err)
	assert.Equal(t, key, got)

	store.Lock()

	_, err = store.Key()
	assert.ErrorIs(t, err, ErrLocked)
}

func TestUnlockWrongPasswordFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyfile")
	store := NewLocalStore(path)
	require.NoError(t, store.Bootstrap("right-password"))

	_, err := store.Unlock("wrong-password")
	assert.Error(t, err)
}

func TestBootstrapRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyfile")
	store := NewLocalStore(path)
	require.NoError(t, store.Bootstrap("pw"))

	err := store.Bootstrap("pw2")
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "keyfile")
	src := NewLocalStore(srcPath)
	require.NoError(t, src.Bootstrap("shared-password"))

	originalKey, err := src.Unlock("shared-password")
	require.NoError(t, err)

	exported, err := src.Export()
	require.NoError(t, err)

	dstPath := filepath.Join(t.TempDir(), "keyfile-copy")
	dst := NewLocalStore(dstPath)

	require.NoError(t, dst.Import(exported, "shared-password"))

	importedKey, err := dst.Unlock("shared-password")
	require.NoError(t, err)
	assert.Equal(t, originalKey, importedKey)
}

func TestImportRejectsWrongPassword(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "keyfile")
	src := NewLocalStore(srcPath)
	require.NoError(t, src.Bootstrap("shared-password"))

	exported, err := src.Export()
	require.NoError(t, err)

	dst := NewLocalStore(filepath.Join(t.TempDir(), "keyfile-copy"))
	err = dst.Import(exported, "wrong-password")
	assert.Error(t, err)
}
