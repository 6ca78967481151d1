package localstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, no cgo
)

// SQLiteStore is the default Store implementation: a single local SQLite
// database in WAL mode, with a prepared-statement group set up once at open.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	fileStmts   fileStatements
	uploadStmts uploadStatements
	cursorStmts cursorStatements
}

type fileStatements struct {
	get    *sql.Stmt
	upsert *sql.Stmt
	del    *sql.Stmt
	list   *sql.Stmt
}

type uploadStatements struct {
	get    *sql.Stmt
	upsert *sql.Stmt
	del    *sql.Stmt
}

type cursorStatements struct {
	get    *sql.Stmt
	upsert *sql.Stmt
}

// NewStore opens (creating if necessary) the SQLite database at dbPath,
// applies pragmas, runs pending migrations, and prepares all statements. A
// nil logger discards all log output.
func NewStore(ctx context.Context, dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("localstate: open %s: %w", dbPath, err)
	}

	// A single writer connection avoids SQLITE_BUSY under WAL without
	// needing a busy-timeout retry loop at every call site.
	db.SetMaxOpenConns(1)

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_size_limit = 67108864",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("localstate: pragma %q: %w", p, err)
		}
	}

	return nil
}

func (s *SQLiteStore) prepareStatements(ctx context.Context) error {
	var err error

	prep := func(query string) *sql.Stmt {
		if err != nil {
			return nil
		}

		var stmt *sql.Stmt

		stmt, err = s.db.PrepareContext(ctx, query)

		return stmt
	}

	s.fileStmts.get = prep(`SELECT path, local_mtime, local_size, server_version, chunk_hashes, synced_at
		FROM synced_file_records WHERE path = ?`)
	s.fileStmts.upsert = prep(`INSERT INTO synced_file_records
		(path, local_mtime, local_size, server_version, chunk_hashes, synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			local_mtime = excluded.local_mtime,
			local_size = excluded.local_size,
			server_version = excluded.server_version,
			chunk_hashes = excluded.chunk_hashes,
			synced_at = excluded.synced_at`)
	s.fileStmts.del = prep(`DELETE FROM synced_file_records WHERE path = ?`)
	s.fileStmts.list = prep(`SELECT path, local_mtime, local_size, server_version, chunk_hashes, synced_at
		FROM synced_file_records ORDER BY path`)

	s.uploadStmts.get = prep(`SELECT path, expected_chunk_hashes, uploaded_chunk_hashes, started_at
		FROM upload_progress WHERE path = ?`)
	s.uploadStmts.upsert = prep(`INSERT INTO upload_progress
		(path, expected_chunk_hashes, uploaded_chunk_hashes, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			expected_chunk_hashes = excluded.expected_chunk_hashes,
			uploaded_chunk_hashes = excluded.uploaded_chunk_hashes,
			started_at = excluded.started_at`)
	s.uploadStmts.del = prep(`DELETE FROM upload_progress WHERE path = ?`)

	s.cursorStmts.get = prep(`SELECT cursor FROM change_cursor WHERE id = 1`)
	s.cursorStmts.upsert = prep(`INSERT INTO change_cursor (id, cursor) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET cursor = excluded.cursor`)

	if err != nil {
		return fmt.Errorf("localstate: prepare statements: %w", err)
	}

	return nil
}

func (s *SQLiteStore) GetSyncedFileRecord(ctx context.Context, path string) (*SyncedFileRecord, error) {
	row := s.fileStmts.get.QueryRowContext(ctx, path)

	rec, err := scanSyncedFileRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("localstate: get synced file record %s: %w", path, err)
	}

	return rec, nil
}

func (s *SQLiteStore) PutSyncedFileRecord(ctx context.Context, rec *SyncedFileRecord) error {
	hashesJSON, err := json.Marshal(rec.ChunkHashes)
	if err != nil {
		return fmt.Errorf("localstate: marshal chunk hashes: %w", err)
	}

	syncedAt := rec.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now()
	}

	_, err = s.fileStmts.upsert.ExecContext(ctx, rec.Path, rec.LocalMtime, rec.LocalSize,
		rec.ServerVersion, string(hashesJSON), syncedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("localstate: put synced file record %s: %w", rec.Path, err)
	}

	return nil
}

func (s *SQLiteStore) DeleteSyncedFileRecord(ctx context.Context, path string) error {
	if _, err := s.fileStmts.del.ExecContext(ctx, path); err != nil {
		return fmt.Errorf("localstate: delete synced file record %s: %w", path, err)
	}

	return nil
}

func (s *SQLiteStore) ListSyncedFileRecords(ctx context.Context) ([]*SyncedFileRecord, error) {
	rows, err := s.fileStmts.list.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("localstate: list synced file records: %w", err)
	}
	defer rows.Close()

	var out []*SyncedFileRecord

	for rows.Next() {
		rec, err := scanSyncedFileRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("localstate: scan synced file record: %w", err)
		}

		out = append(out, rec)
	}

	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncedFileRecord(row rowScanner) (*SyncedFileRecord, error) {
	var (
		rec          SyncedFileRecord
		hashesJSON   string
		syncedAtNano int64
	)

	if err := row.Scan(&rec.Path, &rec.LocalMtime, &rec.LocalSize, &rec.ServerVersion,
		&hashesJSON, &syncedAtNano); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(hashesJSON), &rec.ChunkHashes); err != nil {
		return nil, fmt.Errorf("unmarshal chunk hashes: %w", err)
	}

	rec.SyncedAt = time.Unix(0, syncedAtNano)

	return &rec, nil
}

func (s *SQLiteStore) GetChangeCursor(ctx context.Context) (string, error) {
	var cursor string

	err := s.cursorStmts.get.QueryRowContext(ctx).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("localstate: get change cursor: %w", err)
	}

	return cursor, nil
}

func (s *SQLiteStore) PutChangeCursor(ctx context.Context, cursor string) error {
	if _, err := s.cursorStmts.upsert.ExecContext(ctx, cursor); err != nil {
		return fmt.Errorf("localstate: put change cursor: %w", err)
	}

	return nil
}

func (s *SQLiteStore) GetUploadProgress(ctx context.Context, path string) (*UploadProgress, error) {
	var (
		p                    UploadProgress
		expectedJSON         string
		uploadedJSON         string
		startedAtNano        int64
	)

	err := s.uploadStmts.get.QueryRowContext(ctx, path).Scan(&p.Path, &expectedJSON, &uploadedJSON, &startedAtNano)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("localstate: get upload progress %s: %w", path, err)
	}

	if err := json.Unmarshal([]byte(expectedJSON), &p.ExpectedChunkHashes); err != nil {
		return nil, fmt.Errorf("unmarshal expected chunk hashes: %w", err)
	}

	if err := json.Unmarshal([]byte(uploadedJSON), &p.UploadedChunkHashes); err != nil {
		return nil, fmt.Errorf("unmarshal uploaded chunk hashes: %w", err)
	}

	p.StartedAt = time.Unix(0, startedAtNano)

	return &p, nil
}

func (s *SQLiteStore) PutUploadProgress(ctx context.Context, p *UploadProgress) error {
	expectedJSON, err := json.Marshal(p.ExpectedChunkHashes)
	if err != nil {
		return fmt.Errorf("localstate: marshal expected chunk hashes: %w", err)
	}

	uploadedJSON, err := json.Marshal(p.UploadedChunkHashes)
	if err != nil {
		return fmt.Errorf("localstate: marshal uploaded chunk hashes: %w", err)
	}

	startedAt := p.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	_, err = s.uploadStmts.upsert.ExecContext(ctx, p.Path, string(expectedJSON), string(uploadedJSON), startedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("localstate: put upload progress %s: %w", p.Path, err)
	}

	return nil
}

func (s *SQLiteStore) DeleteUploadProgress(ctx context.Context, path string) error {
	if _, err := s.uploadStmts.del.ExecContext(ctx, path); err != nil {
		return fmt.Errorf("localstate: delete upload progress %s: %w", path, err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
