package config

// Default values for configuration options — the "layer 0" of the
// TOML-then-env override chain.
const (
	defaultSyncFolder    = "~/SyncAgent"
	defaultCDCMin        = "1MiB"
	defaultCDCAvg        = "4MiB"
	defaultCDCMax        = "8MiB"
	defaultWorkerCount   = 4
	defaultMaxRetries    = 5
	defaultRetryMaxDelay = "60s"
	defaultScanInterval  = "300s"
	defaultDebounceMs    = 250
	defaultSettleMs      = 3000
	defaultLogLevel      = "info"
	defaultLogFormat     = "auto"
	defaultConnectTO     = "10s"
	defaultReadTO        = "30s"
	defaultUserAgent     = "syncagent/0.1"
)

// DefaultConfig returns a Config populated with all default values. Used both
// as the starting point for TOML decoding (so unset fields retain defaults)
// and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		SyncFolder: defaultSyncFolder,
		CDC: CDCConfig{
			Min: defaultCDCMin,
			Avg: defaultCDCAvg,
			Max: defaultCDCMax,
		},
		Workers: WorkersConfig{
			Count:         defaultWorkerCount,
			MaxRetries:    defaultMaxRetries,
			RetryMaxDelay: defaultRetryMaxDelay,
		},
		SyncTimes: SyncTimesConfig{
			ScanInterval: defaultScanInterval,
			DebounceMs:   defaultDebounceMs,
			SettleMs:     defaultSettleMs,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTO,
			ReadTimeout:    defaultReadTO,
			UserAgent:      defaultUserAgent,
		},
	}
}
