package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/syncagent/syncagent/internal/config"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused daemon's sync cycles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			return runResume(cc)
		},
	}
}

func runResume(cc *CLIContext) error {
	home := filepath.Dir(cc.Holder.Path())
	pausePath := config.PauseFilePath(home)

	if err := os.Remove(pausePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			statusf("Not paused.\n")
			return nil
		}

		return withExitCode(exitInternalError, fmt.Errorf("removing pause marker: %w", err))
	}

	notifyDaemon(home)
	statusf("Resumed.\n")

	return nil
}
