package config

import (
	"fmt"
	"time"
)

// Validate parses the string-typed duration/size fields of cfg into a
// Resolved struct, rejecting nonsensical values. Fails fast at config-load
// time rather than propagating parse errors deep into the sync engine.
func Validate(cfg *Config) (*Resolved, error) {
	r := &Resolved{Config: *cfg}

	var err error

	if r.CDCMin, err = ParseSize(cfg.CDC.Min); err != nil {
		return nil, fmt.Errorf("config: cdc.min: %w", err)
	}

	if r.CDCAvg, err = ParseSize(cfg.CDC.Avg); err != nil {
		return nil, fmt.Errorf("config: cdc.avg: %w", err)
	}

	if r.CDCMax, err = ParseSize(cfg.CDC.Max); err != nil {
		return nil, fmt.Errorf("config: cdc.max: %w", err)
	}

	if r.CDCMin <= 0 || r.CDCAvg <= r.CDCMin || r.CDCMax <= r.CDCAvg {
		return nil, fmt.Errorf("config: cdc sizes must satisfy 0 < min < avg < max (got min=%d avg=%d max=%d)",
			r.CDCMin, r.CDCAvg, r.CDCMax)
	}

	if r.RetryMaxDelay, err = time.ParseDuration(cfg.Workers.RetryMaxDelay); err != nil {
		return nil, fmt.Errorf("config: retry_max_delay: %w", err)
	}

	if r.ScanInterval, err = time.ParseDuration(cfg.SyncTimes.ScanInterval); err != nil {
		return nil, fmt.Errorf("config: scan_interval: %w", err)
	}

	r.DebounceDelay = time.Duration(cfg.SyncTimes.DebounceMs) * time.Millisecond
	r.SettleDelay = time.Duration(cfg.SyncTimes.SettleMs) * time.Millisecond

	if r.ConnectTimeout, err = time.ParseDuration(cfg.Network.ConnectTimeout); err != nil {
		return nil, fmt.Errorf("config: connect_timeout: %w", err)
	}

	if r.ReadTimeout, err = time.ParseDuration(cfg.Network.ReadTimeout); err != nil {
		return nil, fmt.Errorf("config: read_timeout: %w", err)
	}

	if cfg.Workers.Count < 1 {
		return nil, fmt.Errorf("config: worker_count must be >= 1, got %d", cfg.Workers.Count)
	}

	if cfg.Workers.MaxRetries < 0 {
		return nil, fmt.Errorf("config: max_retries must be >= 0, got %d", cfg.Workers.MaxRetries)
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("config: server_url must be set")
	}

	if cfg.SyncFolder == "" {
		return nil, fmt.Errorf("config: sync_folder must be set")
	}

	return r, nil
}
