package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/syncagent/syncagent/internal/config"
	"github.com/syncagent/syncagent/internal/conflict"
)

// Resolution strategies for a pending conflict.
const (
	resolutionKeepLocal  = "keep-local"
	resolutionKeepRemote = "keep-remote"
	resolutionKeepBoth   = "keep-both"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [path]",
		Short: "Resolve a pending sync conflict",
		Long: `A conflict leaves two files on disk: the original path (already holding
whichever side's content the resolver downloaded or kept) and a
'{name}.conflict-{timestamp}-{machine}{ext}' copy preserving the other side.

Strategies:
  --keep-local   restore the conflict copy's content over the original path,
                 so it uploads again on the next sync
  --keep-remote  discard the conflict copy, keeping the original path as-is
  --keep-both    leave both files in place; the conflict copy syncs as a new
                 file on its own

Use --all to resolve every pending conflict with the chosen strategy.
Without --all, a path argument (relative to the sync folder) is required.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			return runResolve(cc, cmd, args)
		},
	}

	cmd.Flags().Bool("keep-local", false, "restore the conflict copy over the original path")
	cmd.Flags().Bool("keep-remote", false, "discard the conflict copy")
	cmd.Flags().Bool("keep-both", false, "leave both files in place")
	cmd.Flags().Bool("all", false, "resolve every pending conflict")
	cmd.Flags().Bool("dry-run", false, "preview resolution without executing")

	cmd.MarkFlagsMutuallyExclusive("keep-local", "keep-remote", "keep-both")

	return cmd
}

func runResolve(cc *CLIContext, cmd *cobra.Command, args []string) error {
	resolution, err := resolveStrategy(cmd)
	if err != nil {
		return withExitCode(exitUserError, err)
	}

	all, _ := cmd.Flags().GetBool("all")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if !all && len(args) == 0 {
		return withExitCode(exitUserError, fmt.Errorf("specify a conflicted path, or --all to resolve every pending conflict"))
	}

	if all && len(args) > 0 {
		return withExitCode(exitUserError, fmt.Errorf("--all and a specific path are mutually exclusive"))
	}

	resolved := cc.Holder.Config()

	syncRoot, err := config.ExpandHome(resolved.SyncFolder)
	if err != nil {
		return withExitCode(exitInternalError, err)
	}

	copies, err := conflict.FindConflictCopies(syncRoot)
	if err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("scanning for conflict copies: %w", err))
	}

	if len(copies) == 0 {
		statusf("No pending conflicts.\n")
		return nil
	}

	var targets []conflict.ConflictCopy

	if all {
		targets = copies
	} else {
		target, ok := findConflictCopy(copies, args[0])
		if !ok {
			return withExitCode(exitUserError, fmt.Errorf("no pending conflict for %q", args[0]))
		}

		targets = []conflict.ConflictCopy{target}
	}

	for _, c := range targets {
		if dryRun {
			statusf("Would resolve %s as %s\n", c.OriginalPath, resolution)
			continue
		}

		if err := applyResolution(syncRoot, c, resolution); err != nil {
			return withExitCode(exitInternalError, fmt.Errorf("resolving %s: %w", c.OriginalPath, err))
		}

		statusf("Resolved %s as %s\n", c.OriginalPath, resolution)
	}

	return nil
}

func resolveStrategy(cmd *cobra.Command) (string, error) {
	switch {
	case cmd.Flags().Changed("keep-local"):
		return resolutionKeepLocal, nil
	case cmd.Flags().Changed("keep-remote"):
		return resolutionKeepRemote, nil
	case cmd.Flags().Changed("keep-both"):
		return resolutionKeepBoth, nil
	default:
		return "", fmt.Errorf("specify a resolution strategy: --keep-local, --keep-remote, or --keep-both")
	}
}

// findConflictCopy matches idOrPath against either a conflict copy's
// original path or the copy path itself, accepting either form since users
// naturally refer to conflicts by the file they recognize.
func findConflictCopy(copies []conflict.ConflictCopy, idOrPath string) (conflict.ConflictCopy, bool) {
	for _, c := range copies {
		if c.OriginalPath == idOrPath || c.CopyPath == idOrPath {
			return c, true
		}
	}

	return conflict.ConflictCopy{}, false
}

func applyResolution(syncRoot string, c conflict.ConflictCopy, resolution string) error {
	originalPath := filepath.Join(syncRoot, c.OriginalPath)
	copyPath := filepath.Join(syncRoot, c.CopyPath)

	switch resolution {
	case resolutionKeepRemote:
		return os.Remove(copyPath)

	case resolutionKeepBoth:
		return nil

	case resolutionKeepLocal:
		if err := overwriteFile(copyPath, originalPath); err != nil {
			return err
		}

		return os.Remove(copyPath)

	default:
		return fmt.Errorf("unknown resolution strategy %q", resolution)
	}
}

// overwriteFile copies src's content over dst in place, so dst's directory
// entry (and therefore its parent's watch) is unaffected — only its mtime
// changes, which is what makes the next scan see it as MODIFIED.
func overwriteFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return out.Sync()
}
