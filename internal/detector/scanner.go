// Package detector implements the two cooperating change-detection
// producers: a periodic full Scanner and an fsnotify-backed
// Watcher, both emitting typed events into the shared event queue. The
// Scanner walks the tree with NFC-normalization discipline, comparing
// against each path's SyncedFileRecord, and separately polls the remote
// side for changes since the last cursor.
package detector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/syncagent/syncagent/internal/event"
	"github.com/syncagent/syncagent/internal/ignorefile"
	"github.com/syncagent/syncagent/internal/localstate"
	"github.com/syncagent/syncagent/internal/queue"
	"github.com/syncagent/syncagent/internal/remoteapi"
)

// maxPathChars bounds relative path length — a conservative cross-filesystem
// safety limit rather than a server-specific constraint.
const maxPathChars = 1024

// nosyncFileName halts a scan if present at the sync root, preventing sync
// against an empty or accidentally unmounted volume.
const nosyncFileName = ".nosync"

// ErrNosyncGuard is returned by Scan when a .nosync guard file is present.
var ErrNosyncGuard = errors.New("detector: .nosync guard file found, halting scan")

// Scanner performs the periodic full walk and the remote changes-since poll.
type Scanner struct {
	store   localstate.Store
	ignore  *ignorefile.Matcher
	remote  remoteapi.MetadataClient
	queue   *queue.Queue
	logger  *slog.Logger

	visited map[string]bool
}

// NewScanner creates a Scanner.
func NewScanner(store localstate.Store, ignore *ignorefile.Matcher, remote remoteapi.MetadataClient, q *queue.Queue, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Scanner{store: store, ignore: ignore, remote: remote, queue: q, logger: logger}
}

// ScanLocal walks syncRoot, comparing each entry against SyncedFileRecords
// and emitting LOCAL_CREATED / LOCAL_MODIFIED / LOCAL_DELETED events.
func (s *Scanner) ScanLocal(ctx context.Context, syncRoot string) error {
	if _, err := os.Stat(filepath.Join(syncRoot, nosyncFileName)); err == nil {
		return ErrNosyncGuard
	}

	s.logger.Info("scanner: starting local scan", slog.String("sync_root", syncRoot))

	s.visited = make(map[string]bool)

	if err := s.walkDir(ctx, syncRoot, ""); err != nil {
		return fmt.Errorf("detector: walk failed: %w", err)
	}

	if err := s.detectOrphans(ctx, syncRoot); err != nil {
		return fmt.Errorf("detector: orphan detection failed: %w", err)
	}

	s.logger.Info("scanner: local scan complete", slog.String("sync_root", syncRoot))

	return nil
}

func (s *Scanner) walkDir(ctx context.Context, syncRoot, relDir string) error {
	full := filepath.Join(syncRoot, relDir)

	entries, err := os.ReadDir(full)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", full, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.processEntry(ctx, syncRoot, relDir, entry); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scanner) processEntry(ctx context.Context, syncRoot, relDir string, entry os.DirEntry) error {
	originalName := entry.Name()
	normalizedName := norm.NFC.String(originalName)
	relPath := joinRelPath(relDir, normalizedName)

	if !utf8.ValidString(normalizedName) {
		s.logger.Warn("scanner: invalid UTF-8 filename, skipping", slog.String("path", relPath))
		return nil
	}

	if len([]rune(relPath)) > maxPathChars {
		s.logger.Warn("scanner: path exceeds limit, skipping", slog.String("path", relPath))
		return nil
	}

	if s.ignore != nil && !ignorefile.IsIgnoreFile(relPath) && s.ignore.Matches(relPath, entry.IsDir()) {
		s.logger.Debug("scanner: excluded by .syncignore", slog.String("path", relPath))
		return nil
	}

	info, err := entry.Info()
	if err != nil {
		s.logger.Warn("scanner: cannot stat entry, skipping", slog.String("path", relPath), slog.String("error", err.Error()))
		return nil
	}

	if entry.IsDir() {
		return s.walkDir(ctx, syncRoot, relPath)
	}

	return s.processFile(ctx, relPath, info)
}

func (s *Scanner) processFile(ctx context.Context, relPath string, info os.FileInfo) error {
	s.visited[relPath] = true

	mtime := float64(info.ModTime().UnixNano()) / 1e9
	size := info.Size()

	rec, err := s.store.GetSyncedFileRecord(ctx, relPath)
	if err != nil {
		return fmt.Errorf("looking up synced file record for %s: %w", relPath, err)
	}

	if rec == nil {
		s.logger.Debug("scanner: new local file", slog.String("path", relPath))
		s.queue.Put(event.NewEvent(event.LocalCreated, relPath, event.Metadata{Mtime: mtime, MtimeKnown: true, Size: size}))

		return nil
	}

	// Fast path: mtime and size unchanged means content unchanged.
	if rec.LocalMtime == mtime && rec.LocalSize == size {
		return nil
	}

	s.logger.Debug("scanner: local file changed", slog.String("path", relPath))
	s.queue.Put(event.NewEvent(event.LocalModified, relPath, event.Metadata{Mtime: mtime, MtimeKnown: true, Size: size}))

	return nil
}

// detectOrphans emits LOCAL_DELETED for every SyncedFileRecord whose path
// was not visited during the walk.
func (s *Scanner) detectOrphans(ctx context.Context, syncRoot string) error {
	records, err := s.store.ListSyncedFileRecords(ctx)
	if err != nil {
		return fmt.Errorf("listing synced file records: %w", err)
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.visited[rec.Path] {
			continue
		}

		if _, err := os.Stat(filepath.Join(syncRoot, rec.Path)); err == nil {
			continue // exists, just wasn't reached via walk (shouldn't normally happen)
		}

		s.logger.Debug("scanner: orphan detected (local deletion)", slog.String("path", rec.Path))
		s.queue.Put(event.NewEvent(event.LocalDeleted, rec.Path, event.Metadata{}))
	}

	return nil
}

// RemoteBatch is one polled page of remote changes, together with the
// cursor the caller must persist once every event derived from it has
// reached a terminal outcome.
type RemoteBatch struct {
	Cursor     string
	EventCount int
}

// PollRemote fetches one page of remote changes since the stored cursor and
// emits REMOTE_* events for each. It does not itself
// advance the cursor — the coordinator does that once the batch's events
// are all terminal.
func (s *Scanner) PollRemote(ctx context.Context) (*RemoteBatch, error) {
	cursor, err := s.store.GetChangeCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading change cursor: %w", err)
	}

	page, err := s.remote.GetChanges(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("polling remote changes: %w", err)
	}

	for _, ch := range page.Changes {
		var t event.Type

		switch ch.Type {
		case remoteapi.ChangeCreated:
			t = event.RemoteCreated
		case remoteapi.ChangeUpdated:
			t = event.RemoteModified
		case remoteapi.ChangeDeleted:
			t = event.RemoteDeleted
		default:
			s.logger.Warn("scanner: unknown remote change type, skipping", slog.String("type", string(ch.Type)))
			continue
		}

		s.queue.Put(event.NewEvent(t, ch.Path, event.Metadata{}))
	}

	return &RemoteBatch{Cursor: page.Cursor, EventCount: len(page.Changes)}, nil
}

func joinRelPath(parent, child string) string {
	if parent == "" {
		return child
	}

	return parent + "/" + child
}
