package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads the TOML config at path (if present), applies environment
// overrides, validates, and returns the resolved configuration. A missing
// file is not an error — DefaultConfig is used as the base.
func Load(path string) (*Resolved, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, decErr := toml.DecodeFile(path, cfg); decErr != nil {
				return nil, fmt.Errorf("config: decoding %s: %w", path, decErr)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	ApplyEnvOverrides(cfg, nil)

	resolved, err := Validate(cfg)
	if err != nil {
		return nil, err
	}

	expanded, err := ExpandHome(resolved.SyncFolder)
	if err != nil {
		return nil, fmt.Errorf("config: expanding sync_folder: %w", err)
	}

	resolved.SyncFolder = expanded

	return resolved, nil
}
