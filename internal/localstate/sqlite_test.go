package localstate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "state.db")

	store, err := NewStore(context.Background(), dbPath, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSyncedFileRecordRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.GetSyncedFileRecord(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Nil(t, rec)

	want := &SyncedFileRecord{
		Path:          "docs/a.txt",
		LocalMtime:    1234567.5,
		LocalSize:     42,
		ServerVersion: 3,
		ChunkHashes:   []string{"deadbeef", "cafef00d"},
		SyncedAt:      time.Now().Truncate(time.Second),
	}
	require.NoError(t, store.PutSyncedFileRecord(ctx, want))

	got, err := store.GetSyncedFileRecord(ctx, "docs/a.txt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Path, got.Path)
	assert.Equal(t, want.LocalMtime, got.LocalMtime)
	assert.Equal(t, want.LocalSize, got.LocalSize)
	assert.Equal(t, want.ServerVersion, got.ServerVersion)
	assert.Equal(t, want.ChunkHashes, got.ChunkHashes)

	want.ServerVersion = 4
	require.NoError(t, store.PutSyncedFileRecord(ctx, want))

	got, err = store.GetSyncedFileRecord(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.ServerVersion)

	require.NoError(t, store.DeleteSyncedFileRecord(ctx, "docs/a.txt"))

	got, err = store.GetSyncedFileRecord(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListSyncedFileRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"b.txt", "a.txt", "c.txt"} {
		require.NoError(t, store.PutSyncedFileRecord(ctx, &SyncedFileRecord{
			Path:        p,
			ChunkHashes: []string{"x"},
		}))
	}

	recs, err := store.ListSyncedFileRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "a.txt", recs[0].Path)
	assert.Equal(t, "b.txt", recs[1].Path)
	assert.Equal(t, "c.txt", recs[2].Path)
}

func TestChangeCursorRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cursor, err := store.GetChangeCursor(ctx)
	require.NoError(t, err)
	assert.Empty(t, cursor)

	require.NoError(t, store.PutChangeCursor(ctx, "cursor-1"))

	cursor, err = store.GetChangeCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cursor-1", cursor)

	require.NoError(t, store.PutChangeCursor(ctx, "cursor-2"))

	cursor, err = store.GetChangeCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cursor-2", cursor)
}

func TestUploadProgressRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetUploadProgress(ctx, "big.bin")
	require.NoError(t, err)
	assert.Nil(t, got)

	p := &UploadProgress{
		Path:                "big.bin",
		ExpectedChunkHashes: []string{"h1", "h2", "h3"},
		UploadedChunkHashes: []string{"h1"},
		StartedAt:           time.Now().Truncate(time.Second),
	}
	require.NoError(t, store.PutUploadProgress(ctx, p))

	got, err = store.GetUploadProgress(ctx, "big.bin")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"h2", "h3"}, got.Remaining())
	assert.True(t, got.Matches([]string{"h1", "h2", "h3"}))
	assert.False(t, got.Matches([]string{"h1", "h2"}))

	require.NoError(t, store.DeleteUploadProgress(ctx, "big.bin"))

	got, err = store.GetUploadProgress(ctx, "big.bin")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, StatusNew, DeriveStatus(nil, true, 1, 1))
	assert.Equal(t, StatusDeleted, DeriveStatus(&SyncedFileRecord{LocalMtime: 1, LocalSize: 1}, false, 0, 0))
	assert.Equal(t, StatusModified, DeriveStatus(&SyncedFileRecord{LocalMtime: 1, LocalSize: 1}, true, 2, 1))
	assert.Equal(t, StatusSynced, DeriveStatus(&SyncedFileRecord{LocalMtime: 1, LocalSize: 1}, true, 1, 1))
}
