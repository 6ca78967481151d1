package config

import (
	"fmt"
	"os"
)

// envPrefix namespaces every environment override. Unset variables leave the TOML/default value intact.
const envPrefix = "SYNCAGENT_"

// ApplyEnvOverrides overrides cfg fields from SYNCAGENT_* environment
// variables, layered after the TOML file — a single-profile shape with no
// per-drive section to key overrides by.
func ApplyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	str("SYNC_FOLDER", &cfg.SyncFolder)
	str("SERVER_URL", &cfg.ServerURL)
	str("AUTH_TOKEN", &cfg.AuthToken)
	str("CDC_MIN", &cfg.CDC.Min)
	str("CDC_AVG", &cfg.CDC.Avg)
	str("CDC_MAX", &cfg.CDC.Max)
	str("RETRY_MAX_DELAY", &cfg.Workers.RetryMaxDelay)
	str("SCAN_INTERVAL", &cfg.SyncTimes.ScanInterval)
	str("LOG_LEVEL", &cfg.Logging.LogLevel)
	str("LOG_FILE", &cfg.Logging.LogFile)
	str("LOG_FORMAT", &cfg.Logging.LogFormat)
	str("CONNECT_TIMEOUT", &cfg.Network.ConnectTimeout)
	str("READ_TIMEOUT", &cfg.Network.ReadTimeout)
	str("USER_AGENT", &cfg.Network.UserAgent)

	intVal := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok {
			if n, err := parseIntLenient(v); err == nil {
				*dst = n
			}
		}
	}

	intVal("WORKER_COUNT", &cfg.Workers.Count)
	intVal("MAX_RETRIES", &cfg.Workers.MaxRetries)
	intVal("DEBOUNCE_MS", &cfg.SyncTimes.DebounceMs)
	intVal("SETTLE_MS", &cfg.SyncTimes.SettleMs)
}

func parseIntLenient(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)

	return n, err
}
