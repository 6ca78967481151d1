package tokenfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileNotFound(t *testing.T) {
	tok, meta, err := Load("/nonexistent/path/token.json")
	assert.Empty(t, tok)
	assert.Nil(t, meta)
	assert.NoError(t, err)
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	meta := map[string]string{"org_name": "Contoso", "display_name": "Alice"}

	require.NoError(t, Save(path, "bearer-token-123", meta))

	tok, loadedMeta, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bearer-token-123", tok)
	assert.Equal(t, "Contoso", loadedMeta["org_name"])
	assert.Equal(t, "Alice", loadedMeta["display_name"])
}

func TestLoad_MissingTokenField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"meta":{"k":"v"}}`), 0o600))

	tok, meta, err := Load(path)
	assert.Empty(t, tok)
	assert.Nil(t, meta)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing token field")
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, os.WriteFile(path, []byte(`{not json}`), 0o600))

	tok, meta, err := Load(path)
	assert.Empty(t, tok)
	assert.Nil(t, meta)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}

func TestLoad_NilMeta(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, Save(path, "a", nil))

	tok, meta, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Nil(t, meta)
}

func TestReadMeta_FileNotFound(t *testing.T) {
	meta, err := ReadMeta("/nonexistent/path/token.json")
	assert.Nil(t, meta)
	assert.NoError(t, err)
}

func TestReadMeta_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, Save(path, "a", map[string]string{"org_name": "ACME", "display_name": "Bob"}))

	meta, err := ReadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, "ACME", meta["org_name"])
	assert.Equal(t, "Bob", meta["display_name"])
}

func TestReadMeta_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, os.WriteFile(path, []byte(`{corrupt`), 0o600))

	meta, err := ReadMeta(path)
	assert.Nil(t, meta)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "sub", "dir", "token.json")

	err := Save(nested, "a", nil)
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())
}

func TestSave_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, Save(path, "a", nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	meta := map[string]string{"key": "value"}

	require.NoError(t, Save(path, "access-token", meta))

	tok, loadedMeta, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "access-token", tok)
	assert.Equal(t, "value", loadedMeta["key"])
}

func TestSave_EmptyToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, Save(path, "", nil))

	tok, _, err := Load(path)
	assert.Empty(t, tok)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing token field")
}

func TestLoadAndMergeMeta_MergesKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, Save(path, "a", map[string]string{"org_name": "Old", "display_name": "Alice"}))

	require.NoError(t, LoadAndMergeMeta(path, map[string]string{
		"org_name": "New",
		"user_id":  "abc123",
	}))

	meta, err := ReadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, "New", meta["org_name"])
	assert.Equal(t, "Alice", meta["display_name"])
	assert.Equal(t, "abc123", meta["user_id"])
}

func TestLoadAndMergeMeta_FileNotFound(t *testing.T) {
	err := LoadAndMergeMeta("/nonexistent/path/token.json", map[string]string{"k": "v"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no token file")
}

func TestLoadAndMergeMeta_NilExistingMeta(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, Save(path, "a", nil))

	require.NoError(t, LoadAndMergeMeta(path, map[string]string{"key": "value"}))

	meta, err := ReadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, "value", meta["key"])
}
