package config

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// LoadOrCreateMachineID returns this install's persisted machine identifier,
// generating and saving one (a fresh uuid.New(), the same generator the
// sync engine uses for ephemeral per-cycle and per-conflict identifiers)
// the first time it is needed. The identifier must survive process
// restarts, unlike those ephemeral uses, so it lives in a small file under
// agentHome rather than being regenerated per run.
func LoadOrCreateMachineID(agentHome string) (string, error) {
	path := MachineIDFilePath(agentHome)

	existing, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(existing)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	id := uuid.New().String()

	if err := os.MkdirAll(agentHome, configDirPermissions); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(id), configFilePermissions); err != nil {
		return "", err
	}

	return id, nil
}
