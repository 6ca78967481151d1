package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/syncagent/syncagent/internal/config"
	"github.com/syncagent/syncagent/internal/keystore"
	"github.com/syncagent/syncagent/internal/tokenfile"
)

// masterPasswordEnvVar holds the master password used to seal the local
// data-encryption key, out of shell history and process listings.
const masterPasswordEnvVar = "SYNCAGENT_MASTER_PASSWORD"

func newRegisterCmd() *cobra.Command {
	var token, masterPassword string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Store the bearer auth token and bootstrap the local keystore",
		Long: fmt.Sprintf(`Store the server's bearer auth token and create the encrypted local
keyfile protecting the sync data-encryption key.

The master password is read from --master-password or the %s
environment variable (the flag takes precedence). It is never persisted —
only its Argon2id derivation sealing the keyfile is.

On a second machine joining the same encrypted sync root, use
'syncagent register --import <blob> --master-password ...' with the blob
produced by exporting the keyfile on the first machine, instead of bootstrapping
a new key.`, masterPasswordEnvVar),
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			importBlob, err := cmd.Flags().GetString("import")
			if err != nil {
				return err
			}

			return runRegister(token, masterPassword, importBlob)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "bearer auth token issued by the remote sync server")
	cmd.Flags().StringVar(&masterPassword, "master-password", "", "master password sealing the local data key")
	cmd.Flags().String("import", "", "base64 keyfile blob exported from another machine, instead of bootstrapping a new key")

	return cmd
}

func runRegister(token, masterPassword, importBlob string) error {
	if token == "" {
		return withExitCode(exitUserError, fmt.Errorf("--token is required"))
	}

	if masterPassword == "" {
		masterPassword = os.Getenv(masterPasswordEnvVar)
	}

	if masterPassword == "" {
		return withExitCode(exitUserError, fmt.Errorf("master password required: pass --master-password or set %s", masterPasswordEnvVar))
	}

	home, err := config.AgentHomeDir()
	if err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("resolving agent home: %w", err))
	}

	cfgPath := config.ConfigFilePath(home)
	if _, err := os.Stat(cfgPath); err != nil {
		return errNotInitialized
	}

	tokenPath := config.TokenFilePath(home)
	if err := tokenfile.Save(tokenPath, token, nil); err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("saving token: %w", err))
	}

	keyPath := config.KeyFilePath(home)
	ks := keystore.NewLocalStore(keyPath)

	if importBlob != "" {
		if err := ks.Import(importBlob, masterPassword); err != nil {
			return withExitCode(exitUserError, fmt.Errorf("importing keyfile: %w", err))
		}

		statusf("Imported keyfile at %s\n", keyPath)
	} else if _, err := os.Stat(keyPath); err == nil {
		statusf("Keyfile already exists at %s, leaving it in place\n", keyPath)
	} else {
		if err := ks.Bootstrap(masterPassword); err != nil {
			return withExitCode(exitInternalError, fmt.Errorf("bootstrapping keystore: %w", err))
		}

		statusf("Created keyfile at %s\n", keyPath)
	}

	if err := writeAuthTokenIntoConfig(cfgPath, token); err != nil {
		return withExitCode(exitInternalError, err)
	}

	statusf("Registered. Run 'syncagent sync --watch' to start syncing.\n")

	return nil
}

// writeAuthTokenIntoConfig round-trips config.toml, updating only
// auth_token. A full decode/re-encode (rather than line-level surgery)
// drops any comments in the file — acceptable here since 'syncagent init'
// writes an uncommented template.
func writeAuthTokenIntoConfig(cfgPath, token string) error {
	resolved, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolved.Config.AuthToken = token

	return writeConfigFile(filepath.Clean(cfgPath), &resolved.Config)
}
