package workerpool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/syncagent/syncagent/internal/cryptutil"
	"github.com/syncagent/syncagent/internal/localstate"
	"github.com/syncagent/syncagent/internal/transfer"
)

// errRetryNeeded signals that the destination changed underneath a download.
var errRetryNeeded = errors.New("workerpool: retry needed, local file changed during download")

// errChunkHashMismatch signals that a downloaded chunk's decrypted plaintext
// does not hash to the chunk identity the server advertised — corruption or
// tampering in transit, never retryable against the same chunk.
var errChunkHashMismatch = errors.New("workerpool: chunk hash mismatch after decryption")

// runDownload implements the DownloadWorker algorithm.
func (p *Pool) runDownload(ctx context.Context, task transfer.Task) transfer.Result {
	fail := func(err error, fk transfer.FailureKind) transfer.Result {
		return transfer.Result{Path: task.Path, Kind: transfer.Download, Outcome: transfer.Failed, FailureKind: fk, Err: err}
	}

	server, err := p.meta.GetFile(ctx, task.Path)
	if err != nil {
		return fail(fmt.Errorf("download: fetching metadata for %s: %w", task.Path, err), transfer.FailureRetryable)
	}

	if server == nil {
		return fail(fmt.Errorf("download: %s no longer exists on server", task.Path), transfer.FailureFatal)
	}

	destPath := p.fullPath(task.Path)

	if result, handled, err := p.preTransferDownloadConflict(ctx, task.Path, destPath); err != nil {
		return fail(err, transfer.FailureRetryable)
	} else if handled {
		return result
	}

	preMtime, preSize, preExists := statIfExists(destPath)

	key, err := p.keys.Key()
	if err != nil {
		return fail(fmt.Errorf("download: %w", err), transfer.FailureFatal)
	}

	tmpPath := destPath + ".syncagent-download.tmp"

	if err := p.downloadChunks(ctx, task, server.ChunkHashes, tmpPath, key); err != nil {
		os.Remove(tmpPath)

		if errors.Is(err, errCancelled) {
			return transfer.Result{Path: task.Path, Kind: transfer.Download, Outcome: transfer.Cancelled}
		}

		if errors.Is(err, errChunkHashMismatch) {
			return fail(err, transfer.FailureFatal)
		}

		return fail(err, transfer.FailureRetryable)
	}

	postMtime, postSize, postExists := statIfExists(destPath)
	if postExists != preExists || postMtime != preMtime || postSize != preSize {
		os.Remove(tmpPath)
		return fail(fmt.Errorf("download: %w for %s", errRetryNeeded, task.Path), transfer.FailureRetryable)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		os.Remove(tmpPath)
		return fail(fmt.Errorf("download: creating parent directory for %s: %w", task.Path, err), transfer.FailureRetryable)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fail(fmt.Errorf("download: renaming into place for %s: %w", task.Path, err), transfer.FailureRetryable)
	}

	rec := &localstate.SyncedFileRecord{
		Path:          task.Path,
		LocalMtime:    server.Mtime,
		LocalSize:     server.Size,
		ServerVersion: server.Version,
		ChunkHashes:   server.ChunkHashes,
		SyncedAt:      time.Now(),
	}

	if err := p.store.PutSyncedFileRecord(ctx, rec); err != nil {
		return fail(fmt.Errorf("download: persisting synced record for %s: %w", task.Path, err), transfer.FailureRetryable)
	}

	return transfer.Result{Path: task.Path, Kind: transfer.Download, Outcome: transfer.Completed}
}

// preTransferDownloadConflict implements step 2: if a SyncedFileRecord
// exists and the file's current on-disk facts no longer match it, the local
// file was modified without our knowledge and must be preserved as a
// conflict copy before the download proceeds.
func (p *Pool) preTransferDownloadConflict(ctx context.Context, relPath, destPath string) (transfer.Result, bool, error) {
	rec, err := p.store.GetSyncedFileRecord(ctx, relPath)
	if err != nil {
		return transfer.Result{}, false, fmt.Errorf("download: looking up synced record for %s: %w", relPath, err)
	}

	mtime, size, exists := statIfExists(destPath)

	if rec == nil {
		// No SyncedFileRecord means this path was never reconciled with the
		// remote — including a soft-deleted file restored to a path an
		// unrelated local file has since occupied. If something is there on
		// disk, it isn't ours to overwrite.
		if !exists {
			return transfer.Result{}, false, nil
		}
	} else if !exists || (mtime == rec.LocalMtime && size == rec.LocalSize) {
		return transfer.Result{}, false, nil
	}

	result, err := p.resolver.ResolveDownload(relPath)
	if err != nil {
		return transfer.Result{}, false, fmt.Errorf("download: resolving conflict for %s: %w", relPath, err)
	}

	return transfer.Result{Path: relPath, Kind: transfer.Download, Outcome: transfer.Conflict, ConflictPath: result.ConflictPath}, true, nil
}

// downloadChunks implements step 3.
func (p *Pool) downloadChunks(ctx context.Context, task transfer.Task, chunkHashes []string, tmpPath string, key []byte) error {
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file %s: %w", tmpPath, err)
	}
	defer out.Close()

	var transferred int64

	for i, hash := range chunkHashes {
		if isCancelled(task) {
			return errCancelled
		}

		sealed, err := p.chunks.GetChunk(ctx, hash)
		if err != nil {
			return fmt.Errorf("fetching chunk %s: %w", hash, err)
		}

		plaintext, err := cryptutil.Open(key, sealed)
		if err != nil {
			return fmt.Errorf("decrypting chunk %s: %w", hash, err)
		}

		sum := sha256.Sum256(plaintext)
		if hex.EncodeToString(sum[:]) != hash {
			return fmt.Errorf("chunk %s: %w", hash, errChunkHashMismatch)
		}

		n, err := out.Write(plaintext)
		if err != nil {
			return fmt.Errorf("writing chunk %s: %w", hash, err)
		}

		transferred += int64(n)

		p.emitProgress(ProgressSample{Path: task.Path, BytesTransferred: transferred, ChunkIndex: i + 1, TotalChunks: len(chunkHashes)})
	}

	return out.Sync()
}

func statIfExists(path string) (mtime float64, size int64, exists bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, false
	}

	return mtimeOf(info), info.Size(), true
}
