// Package ignorefile implements the `.syncignore` filter: a single gitignore-style glob file at the sync root,
// itself a synchronized file, whose patterns apply to every path the change
// detector considers.
package ignorefile

import (
	"log/slog"
	"path/filepath"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
)

// FileName is the fixed name of the ignore file at the sync root.
const FileName = ".syncignore"

// Matcher evaluates paths against the sync root's .syncignore patterns. It
// caches the parsed pattern set and must be told to Reload whenever
// .syncignore itself changes — since it is a synchronized file like any
// other, its own LOCAL_MODIFIED/REMOTE_MODIFIED event must trigger a reload.
type Matcher struct {
	syncRoot string
	logger   *slog.Logger

	mu      sync.RWMutex
	compiled *ignore.GitIgnore // nil means no .syncignore file present
}

// New creates a Matcher for syncRoot and performs an initial load.
func New(syncRoot string, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Matcher{syncRoot: syncRoot, logger: logger}
	m.Reload()

	return m
}

// Reload re-reads .syncignore from disk. Safe to call concurrently with
// Matches from other goroutines (e.g. the watcher's debounce goroutine and
// the scanner's periodic walk).
func (m *Matcher) Reload() {
	path := filepath.Join(m.syncRoot, FileName)

	compiled, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		m.logger.Debug("no .syncignore file, or unreadable", slog.String("path", path))

		m.mu.Lock()
		m.compiled = nil
		m.mu.Unlock()

		return
	}

	m.mu.Lock()
	m.compiled = compiled
	m.mu.Unlock()

	m.logger.Debug("loaded .syncignore", slog.String("path", path))
}

// Matches reports whether relPath (relative to the sync root, forward
// slashes) should be excluded from sync. isDir appends the trailing slash
// gitignore semantics require for directory-only patterns.
func (m *Matcher) Matches(relPath string, isDir bool) bool {
	m.mu.RLock()
	compiled := m.compiled
	m.mu.RUnlock()

	if compiled == nil {
		return false
	}

	matchPath := filepath.ToSlash(relPath)
	if isDir {
		matchPath += "/"
	}

	return compiled.MatchesPath(matchPath)
}

// IsIgnoreFile reports whether relPath is .syncignore itself, at the sync
// root — special-cased by the detector/coordinator so that syncing it still
// happens even though it governs what
// else is excluded.
func IsIgnoreFile(relPath string) bool {
	return filepath.ToSlash(filepath.Clean(relPath)) == FileName
}
