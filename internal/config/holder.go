package config

import "sync"

// Holder provides thread-safe access to a mutable *Resolved config and an
// immutable config file path. `sync --watch` reloads it on SIGHUP; the remote
// API client keeps the server_url and auth token it was built with until the
// daemon restarts.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Resolved
	path string
}

// NewHolder creates a Holder with the initial resolved config and file path.
func NewHolder(cfg *Resolved, path string) *Holder {
	return &Holder{cfg: cfg, path: path}
}

// Config returns the current config snapshot. Thread-safe (read lock).
func (h *Holder) Config() *Resolved {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.cfg
}

// Path returns the config file path. Immutable after construction.
func (h *Holder) Path() string {
	return h.path
}

// Reload re-reads the config file from Path and swaps it in atomically.
// Returns the new config on success; the Holder is left unchanged on error.
func (h *Holder) Reload() (*Resolved, error) {
	cfg, err := Load(h.path)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()

	return cfg, nil
}
