package detector

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/unicode/norm"

	"github.com/syncagent/syncagent/internal/event"
	"github.com/syncagent/syncagent/internal/ignorefile"
	"github.com/syncagent/syncagent/internal/queue"
)

// DebounceWindow coalesces rapid-fire notifications for the same path.
const DebounceWindow = 250 * time.Millisecond

// SettleDelay holds a path after its debounce window closes before emitting,
// so editors that rewrite a file as (create-tmp, rename, flush) yield one
// event.
const SettleDelay = 3 * time.Second

// Watcher wraps fsnotify with per-path debounce + settle coalescing.
type Watcher struct {
	syncRoot string
	ignore   *ignorefile.Matcher
	queue    *queue.Queue
	logger   *slog.Logger

	fsw *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher creates a Watcher rooted at syncRoot, recursively registering
// every existing subdirectory with fsnotify (fsnotify does not watch
// recursively on its own).
func NewWatcher(syncRoot string, ignore *ignorefile.Matcher, q *queue.Queue, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		syncRoot: syncRoot,
		ignore:   ignore,
		queue:    q,
		logger:   logger,
		fsw:      fsw,
		timers:   make(map[string]*time.Timer),
	}

	if err := w.addRecursive(syncRoot); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree: skip, the periodic scanner covers it
		}

		if d.IsDir() {
			return w.fsw.Add(path)
		}

		return nil
	})
}

// Run consumes fsnotify events until ctx is cancelled. The caller MUST start
// Run before running the initial Scanner.ScanLocal, so edits during the scan
// are captured — the queue's MtimeAwareComparator resolves the resulting
// race.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("watcher: fsnotify error", slog.String("error", err.Error()))
		case fsEvt, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			w.handleFsEvent(ctx, fsEvt)
		}
	}
}

func (w *Watcher) handleFsEvent(ctx context.Context, fsEvt fsnotify.Event) {
	if fsEvt.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(fsEvt.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(fsEvt.Name) // newly created directory: watch it too
		}
	}

	relPath, err := filepath.Rel(w.syncRoot, fsEvt.Name)
	if err != nil {
		return
	}

	relPath = norm.NFC.String(filepath.ToSlash(relPath))

	if w.ignore != nil && !ignorefile.IsIgnoreFile(relPath) {
		info, statErr := os.Stat(fsEvt.Name)
		isDir := statErr == nil && info.IsDir()

		if w.ignore.Matches(relPath, isDir) {
			return
		}
	}

	if ignorefile.IsIgnoreFile(relPath) {
		w.ignore.Reload()
	}

	w.debounce(ctx, relPath, fsEvt)
}

// debounce resets a per-path timer on every notification; the timer only
// fires — emitting the coalesced event — once no further notifications
// arrive for DebounceWindow plus SettleDelay.
func (w *Watcher) debounce(ctx context.Context, relPath string, fsEvt fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[relPath]; ok {
		t.Stop()
	}

	w.timers[relPath] = time.AfterFunc(DebounceWindow+SettleDelay, func() {
		w.emit(ctx, relPath, fsEvt)

		w.mu.Lock()
		delete(w.timers, relPath)
		w.mu.Unlock()
	})
}

func (w *Watcher) emit(ctx context.Context, relPath string, fsEvt fsnotify.Event) {
	if ctx.Err() != nil {
		return
	}

	fullPath := filepath.Join(w.syncRoot, relPath)

	info, statErr := os.Stat(fullPath)
	if statErr != nil {
		w.queue.Put(event.NewEvent(event.LocalDeleted, relPath, event.Metadata{}))
		return
	}

	t := event.LocalModified
	if fsEvt.Op&fsnotify.Create != 0 {
		t = event.LocalCreated
	}

	mtime := float64(info.ModTime().UnixNano()) / 1e9
	w.queue.Put(event.NewEvent(t, relPath, event.Metadata{Mtime: mtime, MtimeKnown: true, Size: info.Size()}))
}

// Close stops the underlying fsnotify watcher and any pending debounce
// timers.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()

	return w.fsw.Close()
}
