package config

import (
	"os"
	"path/filepath"
	"strings"
)

// agentHomeDirName is the directory under the user's home directory that
// holds the local state DB, daemon lock, and key material.
const agentHomeDirName = ".syncagent"

// AgentHomeDir returns the agent's home directory (~/.syncagent), creating
// nothing — callers MkdirAll as needed.
func AgentHomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, agentHomeDirName), nil
}

// StateDBPath returns the path to the SQLite local state database.
func StateDBPath(agentHome string) string {
	return filepath.Join(agentHome, "state.db")
}

// LockFilePath returns the path to the single-instance daemon lock.
func LockFilePath(agentHome string) string {
	return filepath.Join(agentHome, "daemon.lock")
}

// KeyFilePath returns the path to the encrypted local keystore file.
func KeyFilePath(agentHome string) string {
	return filepath.Join(agentHome, "keyfile")
}

// TokenFilePath returns the path to the stored bearer auth token.
func TokenFilePath(agentHome string) string {
	return filepath.Join(agentHome, "token")
}

// ConfigFilePath returns the default TOML config file path.
func ConfigFilePath(agentHome string) string {
	return filepath.Join(agentHome, "config.toml")
}

// PauseFilePath returns the path to the marker file whose presence pauses
// the running daemon's sync cycles (toggled by the pause/resume commands).
func PauseFilePath(agentHome string) string {
	return filepath.Join(agentHome, "paused")
}

// MachineIDFilePath returns the path to the persisted per-install machine
// identifier used as the `{machine}` component of conflict filenames.
func MachineIDFilePath(agentHome string) string {
	return filepath.Join(agentHome, "machine-id")
}

// ExpandHome expands a leading "~" in path to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:]), nil
	}

	return path, nil
}
