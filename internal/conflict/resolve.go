package conflict

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Outcome is the result of a conflict detection/resolution attempt.
type Outcome string

// Outcomes of a resolution attempt.
const (
	NoConflict    Outcome = "NO_CONFLICT"
	AlreadySynced Outcome = "ALREADY_SYNCED"
	Resolved      Outcome = "RESOLVED"
	RetryNeeded   Outcome = "RETRY_NEEDED"
	Abort         Outcome = "ABORT"
)

// Point is the point in a transfer's lifecycle at which a conflict was
// detected.
type Point string

// Detection points.
const (
	PreTransfer     Point = "PRE_TRANSFER"
	MidTransfer     Point = "MID_TRANSFER"
	PostTransfer    Point = "POST_TRANSFER"
	ConcurrentEvent Point = "CONCURRENT_EVENT"
)

// Resolver implements Server-Wins + Local-Preserved conflict resolution. It
// performs the filesystem rename but never touches LocalState directly —
// callers (the worker pool) persist the resulting SyncedFileRecord, keeping
// the resolver itself stateless.
type Resolver struct {
	syncRoot  string
	machineID string
	logger    *slog.Logger
}

// NewResolver creates a Resolver for the given sync root and machine ID
// (the `{machine}` component of conflict filenames).
func NewResolver(syncRoot, machineID string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{syncRoot: syncRoot, machineID: machineID, logger: logger}
}

// UploadResult is returned by ResolveUpload.
type UploadResult struct {
	Outcome Outcome
	// ConflictPath is set when Outcome == Resolved: the local file was moved
	// here and the caller must queue it as a NEW local file for the next
	// sync pass, then download the server version
	// into the original path.
	ConflictPath string
}

// ResolveUpload resolves an upload conflict: called once the caller has
// already fetched the server's current content hash and computed the local
// file's content hash.
func (r *Resolver) ResolveUpload(relPath string, localContentHash, serverContentHash string) (*UploadResult, error) {
	if localContentHash == serverContentHash {
		return &UploadResult{Outcome: AlreadySynced}, nil
	}

	localPath := filepath.Join(r.syncRoot, relPath)
	conflictPath := GeneratePath(localPath, r.machineID)

	r.logger.Info("conflict: preserving local file as conflict copy",
		slog.String("path", relPath), slog.String("conflict_path", conflictPath))

	if err := SafeRename(localPath, conflictPath); err != nil {
		return nil, fmt.Errorf("conflict: resolving upload conflict for %s: %w", relPath, err)
	}

	return &UploadResult{Outcome: Resolved, ConflictPath: conflictPath}, nil
}

// ResolveDownload resolves a download conflict: called on PRE_TRANSFER
// detection of an untracked or locally-modified file at the destination.
// Identical SafeRename behavior to ResolveUpload, then the caller proceeds
// with the download into the now-vacated original path.
func (r *Resolver) ResolveDownload(relPath string) (*UploadResult, error) {
	localPath := filepath.Join(r.syncRoot, relPath)

	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		return &UploadResult{Outcome: NoConflict}, nil
	}

	conflictPath := GeneratePath(localPath, r.machineID)

	r.logger.Info("conflict: preserving local file before download",
		slog.String("path", relPath), slog.String("conflict_path", conflictPath))

	if err := SafeRename(localPath, conflictPath); err != nil {
		return nil, fmt.Errorf("conflict: resolving download conflict for %s: %w", relPath, err)
	}

	return &UploadResult{Outcome: Resolved, ConflictPath: conflictPath}, nil
}

// DeleteVsModify resolves a delete-vs-modify race: modification wins.
// localDeleted is true when the local side deleted and the remote side
// modified, and false when the remote side deleted and the local side
// modified.
//
//   - local DELETE races remote MODIFY: the modification wins — caller must
//     proceed with the download, discarding the local deletion.
//   - remote DELETE races local MODIFY: the local file is preserved as a
//     conflict copy and re-uploaded at the next cycle.
func (r *Resolver) DeleteVsModify(relPath string, localDeleted bool) (*UploadResult, error) {
	if localDeleted {
		return &UploadResult{Outcome: Resolved}, nil // caller proceeds with download
	}

	localPath := filepath.Join(r.syncRoot, relPath)
	conflictPath := GeneratePath(localPath, r.machineID)

	r.logger.Info("conflict: preserving locally modified file against remote delete",
		slog.String("path", relPath), slog.String("conflict_path", conflictPath))

	if err := SafeRename(localPath, conflictPath); err != nil {
		return nil, fmt.Errorf("conflict: resolving delete-vs-modify for %s: %w", relPath, err)
	}

	return &UploadResult{Outcome: Resolved, ConflictPath: conflictPath}, nil
}
