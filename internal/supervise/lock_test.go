package supervise

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquireFailsWhenAlreadyLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	_, err = Acquire(path)
	assert.Error(t, err)
}

func TestReleaseAllowsReacquisition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)

	lock.Release()

	second, err := Acquire(path)
	require.NoError(t, err)
	defer second.Release()
}
