package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/syncagent/syncagent/internal/config"
)

func newInitCmd() *cobra.Command {
	var syncFolder, serverURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file and sync folder",
		Long: `Create ~/.syncagent/config.toml with default settings and the sync folder
it points to. Run this once before 'syncagent register'.`,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(syncFolder, serverURL)
		},
	}

	cmd.Flags().StringVar(&syncFolder, "sync-folder", "", "sync folder path (default ~/SyncAgent)")
	cmd.Flags().StringVar(&serverURL, "server-url", "", "remote sync API base URL")

	return cmd
}

func runInit(syncFolder, serverURL string) error {
	home, err := config.AgentHomeDir()
	if err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("resolving agent home: %w", err))
	}

	cfgPath := config.ConfigFilePath(home)

	if _, err := os.Stat(cfgPath); err == nil {
		return withExitCode(exitUserError, fmt.Errorf("already initialized: %s exists", cfgPath))
	}

	cfg := config.DefaultConfig()

	if syncFolder != "" {
		cfg.SyncFolder = syncFolder
	}

	if serverURL != "" {
		cfg.ServerURL = serverURL
	}

	if err := os.MkdirAll(home, 0o700); err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("creating %s: %w", home, err))
	}

	if err := writeConfigFile(cfgPath, cfg); err != nil {
		return withExitCode(exitInternalError, err)
	}

	expanded, err := config.ExpandHome(cfg.SyncFolder)
	if err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("expanding sync folder: %w", err))
	}

	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("creating sync folder %s: %w", expanded, err))
	}

	statusf("Initialized %s\n", cfgPath)
	statusf("Sync folder: %s\n", expanded)

	if cfg.ServerURL == "" {
		statusf("Set server_url in %s, then run 'syncagent register' to store your auth token.\n", cfgPath)
	} else {
		statusf("Run 'syncagent register' to store your auth token.\n")
	}

	return nil
}

func writeConfigFile(path string, cfg *config.Config) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".config-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("creating temp config file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp config file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting config file permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	success = true

	return nil
}
