package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// configFilePermissions is the standard config file permission (owner rw,
// group/other r).
const configFilePermissions = 0o644

// configDirPermissions is the standard config directory permission.
const configDirPermissions = 0o755

// configTemplate is the config file content written by WriteTemplate. All
// settings are present as commented defaults so users can discover every
// option without reading docs. `init` does not use it: it writes the TOML
// encoding of DefaultConfig.
const configTemplate = `# syncagent configuration

sync_folder = %q
server_url  = %q
# auth_token is normally supplied via SYNCAGENT_AUTH_TOKEN or the keystore,
# not committed to this file. Uncomment only for local testing.
# auth_token = ""

[cdc]
# min = "1MiB"
# avg = "4MiB"
# max = "8MiB"

[workers]
# worker_count = 4
# max_retries = 5
# retry_max_delay = "60s"

[sync]
# scan_interval = "300s"
# debounce_ms = 250
# settle_ms = 3000

[ignore]
# ignore_patterns = ["*.tmp", "~$*"]

[logging]
# log_level = "info"
# log_file = ""
# log_format = "auto"

[network]
# connect_timeout = "10s"
# read_timeout = "30s"
# user_agent = "syncagent/0.1"
`

// WriteTemplate writes the initial config file at path with syncFolder and
// serverURL pre-filled. Fails if the file already exists, to avoid
// clobbering a user's edits.
func WriteTemplate(path, syncFolder, serverURL string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), configDirPermissions); err != nil {
		return fmt.Errorf("config: creating directory for %s: %w", path, err)
	}

	content := fmt.Sprintf(configTemplate, syncFolder, serverURL)

	if err := os.WriteFile(path, []byte(content), configFilePermissions); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}

	return nil
}
