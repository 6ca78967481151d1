// Package localstate implements the client-side authoritative record of
// "last known-good sync" for every path: SyncedFileRecord
// rows, resumable UploadProgress rows, and the scalar change_cursor token.
package localstate

import "time"

// SyncedFileRecord is the authoritative local statement that path was last
// successfully synced with the given attributes. A record
// exists iff the client has ever successfully committed a sync for path.
type SyncedFileRecord struct {
	Path          string
	LocalMtime    float64 // seconds, sub-second precision preserved as a float
	LocalSize     int64
	ServerVersion int64
	ChunkHashes   []string // ordered plaintext chunk digests
	SyncedAt      time.Time
}

// Status is the derived (never stored) sync status of a path, computed from
// a SyncedFileRecord plus a current filesystem stat.
type Status string

// Derived status values.
const (
	StatusNew             Status = "NEW"
	StatusModified        Status = "MODIFIED"
	StatusDeleted         Status = "DELETED"
	StatusSynced          Status = "SYNCED"
	StatusConflictPending Status = "CONFLICT_PENDING"
)

// DeriveStatus computes the derived status of a path from its stored record
// (nil if untracked) and its current on-disk facts. onDisk is false when the
// path does not currently exist locally.
func DeriveStatus(rec *SyncedFileRecord, onDisk bool, curMtime float64, curSize int64) Status {
	switch {
	case rec == nil && onDisk:
		return StatusNew
	case rec == nil && !onDisk:
		return StatusNew // untracked and absent: nothing to derive, caller should not ask
	case rec != nil && !onDisk:
		return StatusDeleted
	case rec != nil && (rec.LocalMtime != curMtime || rec.LocalSize != curSize):
		return StatusModified
	default:
		return StatusSynced
	}
}

// UploadProgress is a persisted, resumable record of chunk-level upload
// progress. If the file's current plaintext chunk hashes no
// longer match ExpectedChunkHashes, the record must be discarded and the
// upload restarted from scratch.
type UploadProgress struct {
	Path                string
	ExpectedChunkHashes []string
	UploadedChunkHashes []string
	StartedAt           time.Time
}

// Remaining returns the expected chunk hashes not yet present in
// UploadedChunkHashes, preserving ExpectedChunkHashes order.
func (p *UploadProgress) Remaining() []string {
	done := make(map[string]bool, len(p.UploadedChunkHashes))
	for _, h := range p.UploadedChunkHashes {
		done[h] = true
	}

	var remaining []string

	for _, h := range p.ExpectedChunkHashes {
		if !done[h] {
			remaining = append(remaining, h)
		}
	}

	return remaining
}

// Matches reports whether freshChunkHashes (recomputed from the file's
// current bytes) is identical to ExpectedChunkHashes. A false result means
// the caller must discard this UploadProgress and restart.
func (p *UploadProgress) Matches(freshChunkHashes []string) bool {
	if len(freshChunkHashes) != len(p.ExpectedChunkHashes) {
		return false
	}

	for i, h := range freshChunkHashes {
		if p.ExpectedChunkHashes[i] != h {
			return false
		}
	}

	return true
}
