// Package config implements TOML configuration loading, environment
// overrides, validation, and platform path resolution for syncagent.
package config

import "time"

// Config is the top-level configuration structure read from TOML and
// overridden by SYNCAGENT_* environment variables.
type Config struct {
	SyncFolder string `toml:"sync_folder"`
	ServerURL  string `toml:"server_url"`
	AuthToken  string `toml:"auth_token"`

	CDC       CDCConfig       `toml:"cdc"`
	Workers   WorkersConfig   `toml:"workers"`
	SyncTimes SyncTimesConfig `toml:"sync"`
	Ignore    IgnoreConfig    `toml:"ignore"`
	Logging   LoggingConfig   `toml:"logging"`
	Network   NetworkConfig   `toml:"network"`
}

// CDCConfig controls content-defined chunking boundary parameters.
type CDCConfig struct {
	Min string `toml:"min"`
	Avg string `toml:"avg"`
	Max string `toml:"max"`
}

// WorkersConfig controls worker pool concurrency and retry behavior.
type WorkersConfig struct {
	Count         int    `toml:"worker_count"`
	MaxRetries    int    `toml:"max_retries"`
	RetryMaxDelay string `toml:"retry_max_delay"`
}

// SyncTimesConfig controls detector timing.
type SyncTimesConfig struct {
	ScanInterval string `toml:"scan_interval"`
	DebounceMs   int    `toml:"debounce_ms"`
	SettleMs     int    `toml:"settle_ms"`
}

// IgnoreConfig lists glob ignore patterns applied in addition to .syncignore.
type IgnoreConfig struct {
	Patterns []string `toml:"ignore_patterns"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client timeouts.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	ReadTimeout    string `toml:"read_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// Resolved holds parsed, validated, ready-to-use durations and sizes derived
// from Config's string fields. Built once by Validate.
type Resolved struct {
	Config

	CDCMin int64
	CDCAvg int64
	CDCMax int64

	RetryMaxDelay time.Duration
	ScanInterval  time.Duration
	DebounceDelay time.Duration
	SettleDelay   time.Duration

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}
