package localstate

import "context"

// Store is the local state persistence boundary. Consumers
// depend on this interface, never on a concrete driver, so coordinator and
// worker-pool code can be tested against an in-memory fake.
type Store interface {
	// GetSyncedFileRecord returns the record for path, or nil if path has
	// never been successfully synced.
	GetSyncedFileRecord(ctx context.Context, path string) (*SyncedFileRecord, error)

	// PutSyncedFileRecord upserts rec. Must be called only after a transfer
	// has fully committed.
	PutSyncedFileRecord(ctx context.Context, rec *SyncedFileRecord) error

	// DeleteSyncedFileRecord removes the record for path, if any.
	DeleteSyncedFileRecord(ctx context.Context, path string) error

	// ListSyncedFileRecords returns every tracked record, for orphan
	// detection and full local rescans.
	ListSyncedFileRecords(ctx context.Context) ([]*SyncedFileRecord, error)

	// GetChangeCursor returns the last change_cursor token persisted from a
	// successful remote changes poll, or "" if none yet.
	GetChangeCursor(ctx context.Context) (string, error)

	// PutChangeCursor persists cursor, replacing any prior value.
	PutChangeCursor(ctx context.Context, cursor string) error

	// GetUploadProgress returns the resumable upload record for path, or nil.
	GetUploadProgress(ctx context.Context, path string) (*UploadProgress, error)

	// PutUploadProgress upserts a resumable upload record.
	PutUploadProgress(ctx context.Context, p *UploadProgress) error

	// DeleteUploadProgress removes the resumable upload record for path, if
	// any (called on successful commit or on a chunk-hash mismatch restart).
	DeleteUploadProgress(ctx context.Context, path string) error

	// Close releases underlying resources (the SQLite connection pool).
	Close() error
}
