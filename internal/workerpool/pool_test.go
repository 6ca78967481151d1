package workerpool

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncagent/syncagent/internal/chunker"
	"github.com/syncagent/syncagent/internal/conflict"
	"github.com/syncagent/syncagent/internal/cryptutil"
	"github.com/syncagent/syncagent/internal/event"
	"github.com/syncagent/syncagent/internal/localstate"
	"github.com/syncagent/syncagent/internal/remoteapi"
	"github.com/syncagent/syncagent/internal/transfer"
)

type fakeStore struct {
	mu       sync.Mutex
	records  map[string]*localstate.SyncedFileRecord
	progress map[string]*localstate.UploadProgress
	cursor   string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*localstate.SyncedFileRecord{}, progress: map[string]*localstate.UploadProgress{}}
}

func (s *fakeStore) GetSyncedFileRecord(_ context.Context, path string) (*localstate.SyncedFileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[path], nil
}

func (s *fakeStore) PutSyncedFileRecord(_ context.Context, rec *localstate.SyncedFileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Path] = rec
	return nil
}

func (s *fakeStore) DeleteSyncedFileRecord(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, path)
	return nil
}

func (s *fakeStore) ListSyncedFileRecords(_ context.Context) ([]*localstate.SyncedFileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*localstate.SyncedFileRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}

	return out, nil
}

func (s *fakeStore) GetChangeCursor(context.Context) (string, error) { return s.cursor, nil }
func (s *fakeStore) PutChangeCursor(_ context.Context, cursor string) error {
	s.cursor = cursor
	return nil
}

func (s *fakeStore) GetUploadProgress(_ context.Context, path string) (*localstate.UploadProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress[path], nil
}

func (s *fakeStore) PutUploadProgress(_ context.Context, p *localstate.UploadProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[p.Path] = p
	return nil
}

func (s *fakeStore) DeleteUploadProgress(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, path)
	return nil
}

func (s *fakeStore) Close() error { return nil }

type fakeMetaClient struct {
	mu       sync.Mutex
	files    map[string]*remoteapi.FileMeta
	version  int64
	conflict *remoteapi.VersionConflict
}

func newFakeMetaClient() *fakeMetaClient {
	return &fakeMetaClient{files: map[string]*remoteapi.FileMeta{}}
}

func (c *fakeMetaClient) PutFile(_ context.Context, req remoteapi.PutFileRequest) (*remoteapi.FileMeta, *remoteapi.VersionConflict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conflict != nil {
		return nil, c.conflict, nil
	}

	c.version++
	meta := &remoteapi.FileMeta{Path: req.Path, Version: c.version, Size: req.Size, Mtime: req.Mtime, ChunkHashes: req.ChunkHashes, ContentHash: ContentHash(req.ChunkHashes)}
	c.files[req.Path] = meta

	return meta, nil, nil
}

func (c *fakeMetaClient) GetFile(_ context.Context, path string) (*remoteapi.FileMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.files[path], nil
}

func (c *fakeMetaClient) ListFiles(context.Context, string) ([]remoteapi.FileMeta, error) { return nil, nil }
func (c *fakeMetaClient) DeleteFile(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, path)
	return nil
}

func (c *fakeMetaClient) GetChanges(context.Context, string) (*remoteapi.ChangesPage, error) {
	return &remoteapi.ChangesPage{}, nil
}

type fakeChunkClient struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeChunkClient() *fakeChunkClient {
	return &fakeChunkClient{blobs: map[string][]byte{}}
}

func (c *fakeChunkClient) HasChunk(_ context.Context, hash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.blobs[hash]
	return ok, nil
}

func (c *fakeChunkClient) PutChunk(_ context.Context, hash string, sealed []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[hash] = sealed
	return nil
}

func (c *fakeChunkClient) GetChunk(_ context.Context, hash string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blobs[hash], nil
}

type fakeKeyProvider struct{ key []byte }

func (f fakeKeyProvider) Key() ([]byte, error) { return f.key, nil }

type fakeSink struct {
	mu      sync.Mutex
	results []transfer.Result
	done    chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{done: make(chan struct{}, 16)}
}

func (s *fakeSink) ReportResult(r transfer.Result) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
	s.done <- struct{}{}
}

func (s *fakeSink) waitOne(t *testing.T) transfer.Result {
	t.Helper()

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.results[len(s.results)-1]
}

func newTestPool(t *testing.T, syncRoot string, store *fakeStore, meta *fakeMetaClient, chunks *fakeChunkClient, sink *fakeSink) *Pool {
	t.Helper()

	key := make([]byte, 32)
	resolver := conflict.NewResolver(syncRoot, "test-machine", nil)
	splitter := chunker.New(64, 256, 1024)

	return New(syncRoot, store, meta, chunks, fakeKeyProvider{key: key}, splitter, resolver, sink, nil, 16)
}

func TestUploadThenDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()

	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	content := make([]byte, 4000)
	for i := range content {
		content[i] = byte(i % 251)
	}

	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.bin"), content, 0o644))

	store := newFakeStore()
	meta := newFakeMetaClient()
	chunks := newFakeChunkClient()
	sink := newFakeSink()

	uploadPool := newTestPool(t, srcRoot, store, meta, chunks, sink)
	uploadPool.Start(ctx, 4)
	defer uploadPool.Stop()

	uploadPool.Submit(ctx, transfer.Task{Path: "a.bin", Kind: transfer.Upload, Event: event.NewEvent(event.LocalCreated, "a.bin", event.Metadata{})})

	result := sink.waitOne(t)
	require.Equal(t, transfer.Completed, result.Outcome)

	downloadStore := newFakeStore()
	downloadSink := newFakeSink()
	downloadPool := newTestPool(t, dstRoot, downloadStore, meta, chunks, downloadSink)
	downloadPool.Start(ctx, 4)
	defer downloadPool.Stop()

	downloadPool.Submit(ctx, transfer.Task{Path: "a.bin", Kind: transfer.Download, Event: event.NewEvent(event.RemoteCreated, "a.bin", event.Metadata{})})

	dlResult := downloadSink.waitOne(t)
	require.Equal(t, transfer.Completed, dlResult.Outcome)

	got, err := os.ReadFile(filepath.Join(dstRoot, "a.bin"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDeleteRemovesLocalFileForRemoteDeletedEvent(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	path := filepath.Join(root, "b.txt")
	require.NoError(t, os.WriteFile(path, []byte("gone soon"), 0o644))

	store := newFakeStore()
	require.NoError(t, store.PutSyncedFileRecord(ctx, &localstate.SyncedFileRecord{Path: "b.txt"}))

	meta := newFakeMetaClient()
	chunks := newFakeChunkClient()
	sink := newFakeSink()

	pool := newTestPool(t, root, store, meta, chunks, sink)
	pool.Start(ctx, 4)
	defer pool.Stop()

	pool.Submit(ctx, transfer.Task{Path: "b.txt", Kind: transfer.Delete, Event: event.NewEvent(event.RemoteDeleted, "b.txt", event.Metadata{})})

	result := sink.waitOne(t)
	require.Equal(t, transfer.Completed, result.Outcome)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	rec, err := store.GetSyncedFileRecord(ctx, "b.txt")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUploadEncryptsChunksAtRest(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	plaintext := []byte("some secret file contents that should never appear in transit as-is")
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.txt"), plaintext, 0o644))

	store := newFakeStore()
	meta := newFakeMetaClient()
	chunks := newFakeChunkClient()
	sink := newFakeSink()

	pool := newTestPool(t, root, store, meta, chunks, sink)
	pool.Start(ctx, 4)
	defer pool.Stop()

	pool.Submit(ctx, transfer.Task{Path: "c.txt", Kind: transfer.Upload, Event: event.NewEvent(event.LocalCreated, "c.txt", event.Metadata{})})

	result := sink.waitOne(t)
	require.Equal(t, transfer.Completed, result.Outcome)

	for _, sealed := range chunks.blobs {
		assert.NotContains(t, string(sealed), "secret")

		key := make([]byte, 32)
		opened, err := cryptutil.Open(key, sealed)
		require.NoError(t, err)
		assert.NotEmpty(t, opened)
	}
}
