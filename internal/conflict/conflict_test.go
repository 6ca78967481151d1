package conflict

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMachineID(t *testing.T) {
	assert.Equal(t, "abc", SanitizeMachineID("abc"))
	assert.Equal(t, "ab", SanitizeMachineID("a!b")[:2])
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`), SanitizeMachineID("??"))
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`), SanitizeMachineID("a very long machine name with spaces!!"))
}

func TestGeneratePathFormat(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "report.docx")
	require.NoError(t, os.WriteFile(original, []byte("x"), 0o644))

	got := GeneratePath(original, "laptop-1")

	pattern := regexp.MustCompile(`^report\.conflict-\d{8}-\d{9}-laptop-1\.docx$`)
	assert.Regexp(t, pattern, filepath.Base(got))
}

func TestGeneratePathDotfile(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, ".bashrc")

	got := filepath.Base(GeneratePath(original, "host"))

	assert.True(t, strings.HasPrefix(got, ".bashrc.conflict-"))
	assert.Equal(t, 1, strings.Count(got, ".bashrc"), "extension must not be re-appended after the conflict suffix")
}

func TestGeneratePathCollisionAvoidance(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(original, []byte("x"), 0o644))

	first := GeneratePath(original, "m")
	require.NoError(t, os.WriteFile(first, []byte("taken"), 0o644))

	second := GeneratePath(original, "m")
	assert.NotEqual(t, first, second)
}

func TestSafeRenameSucceedsWithoutRace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(src, []byte("content"), 0o644))

	require.NoError(t, SafeRename(src, dst))

	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestSafeRenameDetectsRaceAndReturnsSourceIntact(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(src, []byte("content"), 0o644))

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		if err := os.Rename(oldpath, newpath); err != nil {
			return err
		}

		if oldpath == src {
			time.Sleep(2 * time.Millisecond)
			return os.WriteFile(newpath, []byte("raced-write"), 0o644)
		}

		return nil
	}
	defer func() { renameFunc = old }()

	err := SafeRename(src, dst)
	assert.ErrorIs(t, err, ErrRetryNeeded)

	_, statErr := os.Stat(src)
	assert.NoError(t, statErr, "file must be renamed back to src on detected race")
}

func TestResolveUploadAlreadySynced(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(dir, "host", nil)

	result, err := r.ResolveUpload("a.txt", "samehash", "samehash")
	require.NoError(t, err)
	assert.Equal(t, AlreadySynced, result.Outcome)
}

func TestResolveUploadRealConflictRenames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("local version"), 0o644))

	r := NewResolver(dir, "host", nil)

	result, err := r.ResolveUpload("a.txt", "localhash", "serverhash")
	require.NoError(t, err)
	assert.Equal(t, Resolved, result.Outcome)
	assert.FileExists(t, result.ConflictPath)

	_, err = os.Stat(filepath.Join(dir, "a.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestResolveDownloadNoConflictWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(dir, "host", nil)

	result, err := r.ResolveDownload("missing.txt")
	require.NoError(t, err)
	assert.Equal(t, NoConflict, result.Outcome)
}

func TestDeleteVsModifyLocalDeletedLetsDownloadProceed(t *testing.T) {
	r := NewResolver(t.TempDir(), "host", nil)

	result, err := r.DeleteVsModify("a.txt", true)
	require.NoError(t, err)
	assert.Equal(t, Resolved, result.Outcome)
	assert.Empty(t, result.ConflictPath)
}

func TestDeleteVsModifyRemoteDeletedPreservesLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("edited locally"), 0o644))

	r := NewResolver(dir, "host", nil)

	result, err := r.DeleteVsModify("a.txt", false)
	require.NoError(t, err)
	assert.Equal(t, Resolved, result.Outcome)
	assert.FileExists(t, result.ConflictPath)
}
