package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()

	env := map[string]string{
		"SYNCAGENT_SERVER_URL":   "https://override.example.com",
		"SYNCAGENT_WORKER_COUNT": "8",
		"SYNCAGENT_DEBOUNCE_MS":  "500",
	}

	ApplyEnvOverrides(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "https://override.example.com", cfg.ServerURL)
	assert.Equal(t, 8, cfg.Workers.Count)
	assert.Equal(t, 500, cfg.SyncTimes.DebounceMs)
	// Untouched fields retain defaults.
	assert.Equal(t, defaultCDCMin, cfg.CDC.Min)
}

func TestApplyEnvOverridesNoOpWhenUnset(t *testing.T) {
	cfg := DefaultConfig()
	before := *cfg

	ApplyEnvOverrides(cfg, func(string) (string, bool) { return "", false })

	assert.Equal(t, before, *cfg)
}
