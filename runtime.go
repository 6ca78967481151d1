package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/syncagent/syncagent/internal/config"
	"github.com/syncagent/syncagent/internal/conflict"
	"github.com/syncagent/syncagent/internal/keystore"
	"github.com/syncagent/syncagent/internal/remoteapi"
	"github.com/syncagent/syncagent/internal/tokenfile"
)

// syncEnv bundles the pieces the sync command needs to build: the resolved config's derived paths, the remote
// API client, and the unlocked data key.
type syncEnv struct {
	home      string
	syncRoot  string
	resolved  *config.Resolved
	client    *remoteapi.Client
	keys      *keystore.LocalStore
	machineID string
	resolver  *conflict.Resolver
}

// buildSyncEnv resolves the agent home from cc, loads the bearer token,
// unlocks the local keystore, and constructs the remote API client. The
// master password comes from --master-password or SYNCAGENT_MASTER_PASSWORD,
// same precedence as 'register'.
func buildSyncEnv(cc *CLIContext, masterPassword string) (*syncEnv, error) {
	resolved := cc.Holder.Config()
	home := filepath.Dir(cc.Holder.Path())

	token, _, err := tokenfile.Load(config.TokenFilePath(home))
	if err != nil {
		return nil, fmt.Errorf("loading auth token (run 'syncagent register'): %w", err)
	}

	if masterPassword == "" {
		masterPassword = os.Getenv(masterPasswordEnvVar)
	}

	if masterPassword == "" {
		return nil, fmt.Errorf("master password required: pass --master-password or set %s", masterPasswordEnvVar)
	}

	ks := keystore.NewLocalStore(config.KeyFilePath(home))

	if _, err := ks.Unlock(masterPassword); err != nil {
		return nil, fmt.Errorf("unlocking keystore: %w", err)
	}

	metaHTTP := &http.Client{Timeout: resolved.ConnectTimeout}
	transferHTTP := &http.Client{Timeout: resolved.ReadTimeout}

	client := remoteapi.NewClient(resolved.ServerURL, token, metaHTTP, transferHTTP,
		remoteapi.DefaultRetryConfig(), cc.Logger)

	syncRoot, err := config.ExpandHome(resolved.SyncFolder)
	if err != nil {
		return nil, fmt.Errorf("expanding sync folder: %w", err)
	}

	rawMachineID, err := config.LoadOrCreateMachineID(home)
	if err != nil {
		return nil, fmt.Errorf("loading machine id: %w", err)
	}

	machineID := conflict.SanitizeMachineID(rawMachineID)
	resolver := conflict.NewResolver(syncRoot, machineID, cc.Logger)

	return &syncEnv{
		home:      home,
		syncRoot:  syncRoot,
		resolved:  resolved,
		client:    client,
		keys:      ks,
		machineID: machineID,
		resolver:  resolver,
	}, nil
}
