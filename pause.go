package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/syncagent/syncagent/internal/config"
	"github.com/syncagent/syncagent/internal/supervise"
)

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause a running daemon's sync cycles",
		Long: `Create the pause marker file and, if a daemon is running, send it SIGHUP so
it notices the marker without restarting. The daemon keeps its file watcher
and worker pool alive but skips scanning and polling until 'syncagent resume'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			return runPause(cc)
		},
	}
}

func runPause(cc *CLIContext) error {
	home := filepath.Dir(cc.Holder.Path())
	pausePath := config.PauseFilePath(home)

	if _, err := os.Stat(pausePath); err == nil {
		statusf("Already paused.\n")
		return nil
	}

	f, err := os.OpenFile(pausePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("creating pause marker: %w", err))
	}
	f.Close()

	notifyDaemon(home)
	statusf("Paused.\n")

	return nil
}

// notifyDaemon pokes a running daemon with SIGHUP, which it already handles
// as a config reload; the pause marker itself is picked up on the daemon's
// next poll tick regardless. Absence of a running daemon is not an error —
// pause/resume also work ahead of 'sync --watch'.
func notifyDaemon(home string) {
	_ = supervise.SendReload(config.LockFilePath(home))
}
