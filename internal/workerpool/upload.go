package workerpool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/syncagent/syncagent/internal/chunker"
	"github.com/syncagent/syncagent/internal/conflict"
	"github.com/syncagent/syncagent/internal/cryptutil"
	"github.com/syncagent/syncagent/internal/localstate"
	"github.com/syncagent/syncagent/internal/remoteapi"
	"github.com/syncagent/syncagent/internal/transfer"
)

// errCancelled signals that a task's cancel flag was observed between
// chunks or before the final commit step.
var errCancelled = errors.New("workerpool: task cancelled")

// ContentHash derives a single content-identity hash for a file from its
// ordered plaintext chunk hashes: sha256 of the chunk hashes concatenated in
// order. Both client and server compute it identically from the same
// chunk_hashes list, so it is comparable across the wire without either side
// re-reading the full plaintext.
func ContentHash(chunkHashes []string) string {
	h := sha256.New()

	for _, ch := range chunkHashes {
		io.WriteString(h, ch)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// runUpload implements the UploadWorker algorithm.
func (p *Pool) runUpload(ctx context.Context, task transfer.Task) transfer.Result {
	fail := func(err error, fk transfer.FailureKind) transfer.Result {
		return transfer.Result{Path: task.Path, Kind: transfer.Upload, Outcome: transfer.Failed, FailureKind: fk, Err: err}
	}

	info, err := os.Stat(p.fullPath(task.Path))
	if err != nil {
		return fail(fmt.Errorf("upload: stat %s: %w", task.Path, err), transfer.FailureFatal)
	}

	chunks, err := splitFile(ctx, p.fullPath(task.Path), p.splitter)
	if err != nil {
		return fail(fmt.Errorf("upload: chunking %s: %w", task.Path, err), transfer.FailureRetryable)
	}

	hashes := make([]string, len(chunks))
	for i, c := range chunks {
		hashes[i] = c.Hash
	}

	localContentHash := ContentHash(hashes)

	progress, remaining, err := p.resumeOrRestart(ctx, task.Path, hashes)
	if err != nil {
		return fail(fmt.Errorf("upload: resume check for %s: %w", task.Path, err), transfer.FailureRetryable)
	}

	if task.ParentVersion != nil {
		server, err := p.meta.GetFile(ctx, task.Path)
		if err != nil {
			return fail(fmt.Errorf("upload: pre-transfer metadata fetch for %s: %w", task.Path, err), transfer.FailureRetryable)
		}

		if server != nil && server.Version != *task.ParentVersion {
			return p.resolveUploadConflict(task, localContentHash, server.ContentHash, fail)
		}
	}

	key, err := p.keys.Key()
	if err != nil {
		return fail(fmt.Errorf("upload: %w", err), transfer.FailureFatal)
	}

	if err := p.uploadChunks(ctx, task, chunks, remaining, progress, key); err != nil {
		if errors.Is(err, errCancelled) {
			return transfer.Result{Path: task.Path, Kind: transfer.Upload, Outcome: transfer.Cancelled}
		}

		return fail(err, transfer.FailureRetryable)
	}

	if isCancelled(task) {
		return transfer.Result{Path: task.Path, Kind: transfer.Upload, Outcome: transfer.Cancelled}
	}

	req := remoteapi.PutFileRequest{
		Path:          task.Path,
		Size:          info.Size(),
		Mtime:         mtimeOf(info),
		ChunkHashes:   hashes,
		ParentVersion: task.ParentVersion,
	}

	meta, vc, err := p.meta.PutFile(ctx, req)

	if err != nil && req.ParentVersion != nil && errors.Is(err, remoteapi.ErrNotFound) {
		// The path was deleted server-side (e.g. a remote DELETE raced this
		// upload) between the pre-transfer check and the commit, so the PUT
		// targets a path that no longer exists. Re-dispatch as a fresh
		// create rather than retrying the same PUT forever against a
		// version that can never match again.
		p.logger.Info("upload: path gone server-side, re-dispatching as create",
			slog.String("path", task.Path))

		req.ParentVersion = nil
		meta, vc, err = p.meta.PutFile(ctx, req)
	}

	if err != nil {
		return fail(fmt.Errorf("upload: commit %s: %w", task.Path, err), transfer.FailureRetryable)
	}

	if vc != nil {
		return p.resolveUploadConflict(task, localContentHash, vc.ContentHash, fail)
	}

	rec := &localstate.SyncedFileRecord{
		Path:          task.Path,
		LocalMtime:    mtimeOf(info),
		LocalSize:     info.Size(),
		ServerVersion: meta.Version,
		ChunkHashes:   hashes,
		SyncedAt:      time.Now(),
	}

	if err := p.store.PutSyncedFileRecord(ctx, rec); err != nil {
		return fail(fmt.Errorf("upload: persisting synced record for %s: %w", task.Path, err), transfer.FailureRetryable)
	}

	if err := p.store.DeleteUploadProgress(ctx, task.Path); err != nil {
		p.logger.Warn("upload: failed to clear upload progress", slog.String("path", task.Path), slog.String("error", err.Error()))
	}

	return transfer.Result{Path: task.Path, Kind: transfer.Upload, Outcome: transfer.Completed}
}

// resolveUploadConflict implements the §4.5 hand-off: equal content hashes
// mean the file is already synced (nothing to do); otherwise the local file
// is preserved as a conflict copy and the coordinator is told to queue a
// download of the server's version into the original path.
func (p *Pool) resolveUploadConflict(task transfer.Task, localHash, serverHash string, fail func(error, transfer.FailureKind) transfer.Result) transfer.Result {
	result, err := p.resolver.ResolveUpload(task.Path, localHash, serverHash)
	if err != nil {
		return fail(fmt.Errorf("upload: resolving conflict for %s: %w", task.Path, err), transfer.FailureRetryable)
	}

	if result.Outcome == conflict.AlreadySynced {
		return transfer.Result{Path: task.Path, Kind: transfer.Upload, Outcome: transfer.Completed}
	}

	return transfer.Result{Path: task.Path, Kind: transfer.Upload, Outcome: transfer.Conflict, ConflictPath: result.ConflictPath}
}

// resumeOrRestart implements step 2: load any persisted UploadProgress and
// discard it if the freshly computed chunk list no longer matches.
func (p *Pool) resumeOrRestart(ctx context.Context, path string, freshHashes []string) (*localstate.UploadProgress, []string, error) {
	existing, err := p.store.GetUploadProgress(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	if existing != nil && existing.Matches(freshHashes) {
		return existing, existing.Remaining(), nil
	}

	if existing != nil {
		if err := p.store.DeleteUploadProgress(ctx, path); err != nil {
			return nil, nil, err
		}
	}

	fresh := &localstate.UploadProgress{Path: path, ExpectedChunkHashes: freshHashes, StartedAt: time.Now()}

	return fresh, freshHashes, nil
}

// uploadChunks implements step 4.
func (p *Pool) uploadChunks(ctx context.Context, task transfer.Task, chunks []chunker.Chunk, remaining []string, progress *localstate.UploadProgress, key []byte) error {
	remainingSet := make(map[string]bool, len(remaining))
	for _, h := range remaining {
		remainingSet[h] = true
	}

	f, err := os.Open(p.fullPath(task.Path))
	if err != nil {
		return fmt.Errorf("opening %s: %w", task.Path, err)
	}
	defer f.Close()

	for i, c := range chunks {
		if isCancelled(task) {
			return errCancelled
		}

		if !remainingSet[c.Hash] {
			continue
		}

		buf := make([]byte, c.Length)
		if _, err := io.ReadFull(io.NewSectionReader(f, c.Offset, c.Length), buf); err != nil {
			return fmt.Errorf("reading chunk %d of %s: %w", i, task.Path, err)
		}

		has, err := p.chunks.HasChunk(ctx, c.Hash)
		if err != nil {
			return fmt.Errorf("checking chunk %s: %w", c.Hash, err)
		}

		if !has {
			sealed, err := cryptutil.Seal(key, buf)
			if err != nil {
				return fmt.Errorf("sealing chunk %s: %w", c.Hash, err)
			}

			if err := p.chunks.PutChunk(ctx, c.Hash, sealed); err != nil {
				return fmt.Errorf("uploading chunk %s: %w", c.Hash, err)
			}
		}

		progress.UploadedChunkHashes = append(progress.UploadedChunkHashes, c.Hash)

		if err := p.store.PutUploadProgress(ctx, progress); err != nil {
			return fmt.Errorf("persisting upload progress for %s: %w", task.Path, err)
		}

		p.emitProgress(ProgressSample{Path: task.Path, BytesTransferred: c.Offset + c.Length, ChunkIndex: i + 1, TotalChunks: len(chunks)})
	}

	return nil
}

func splitFile(ctx context.Context, path string, s *chunker.Splitter) ([]chunker.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []chunker.Chunk

	err = chunker.Split(ctx, f, s, func(_ []byte, c chunker.Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return chunks, nil
}

func mtimeOf(info os.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / 1e9
}
