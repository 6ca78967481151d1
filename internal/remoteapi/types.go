package remoteapi

import "context"

// FileMeta is the server's view of one path's current metadata.
type FileMeta struct {
	Path         string   `json:"path"`
	Version      int64    `json:"version"`
	Size         int64    `json:"size"`
	Mtime        float64  `json:"mtime"`
	ContentHash  string   `json:"content_hash"`
	ChunkHashes  []string `json:"chunk_hashes"`
	DeletedAt    *float64 `json:"deleted_at,omitempty"`
}

// PutFileRequest is the body of POST /files and PUT /files/{path}.
type PutFileRequest struct {
	Path          string   `json:"path"`
	Size          int64    `json:"size"`
	Mtime         float64  `json:"mtime"`
	ChunkHashes   []string `json:"chunk_hashes"`
	ParentVersion *int64   `json:"parent_version,omitempty"`
}

// VersionConflict is the 409 body returned when ParentVersion is stale.
type VersionConflict struct {
	CurrentVersion int64  `json:"current_version"`
	ContentHash    string `json:"content_hash"`
}

// ChangeType enumerates the "type" field of a remote change record.
type ChangeType string

// Remote change kinds.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is one entry in a GET /changes response.
type Change struct {
	Type      ChangeType `json:"type"`
	Path      string     `json:"path"`
	Version   *int64     `json:"version,omitempty"`
	DeletedAt *float64   `json:"deleted_at,omitempty"`
}

// ChangesPage is the full GET /changes response: a batch of changes plus the
// cursor to resume from on the next poll.
type ChangesPage struct {
	Changes []Change `json:"changes"`
	Cursor  string   `json:"cursor"`
}

// PushEvent is a server->client message on the optional WebSocket push
// channel.
type PushEvent struct {
	Type    string `json:"type"` // "file_changed"
	Path    string `json:"path"`
	Version int64  `json:"version"`
}

// MetadataClient is the narrow interface the coordinator and change detector
// depend on for path/version metadata operations. Consumer-defined, per the
// "accept interfaces, return structs" convention.
type MetadataClient interface {
	PutFile(ctx context.Context, req PutFileRequest) (*FileMeta, *VersionConflict, error)
	GetFile(ctx context.Context, path string) (*FileMeta, error)
	ListFiles(ctx context.Context, prefix string) ([]FileMeta, error)
	DeleteFile(ctx context.Context, path string) error
	GetChanges(ctx context.Context, sinceCursor string) (*ChangesPage, error)
}

// ChunkClient is the narrow interface workers depend on for chunk-level
// blob transfer.
type ChunkClient interface {
	HasChunk(ctx context.Context, hash string) (bool, error)
	PutChunk(ctx context.Context, hash string, sealed []byte) error
	GetChunk(ctx context.Context, hash string) ([]byte, error)
}
