package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/syncagent/syncagent/internal/conflict"
	"github.com/syncagent/syncagent/internal/config"
	"github.com/syncagent/syncagent/internal/localstate"
	"github.com/syncagent/syncagent/internal/supervise"
)

func newStatusCmd() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and per-file sync status",
		Long: `Report whether a daemon is running, paused, or stopped, and the derived
status (NEW/MODIFIED/DELETED/SYNCED/CONFLICT_PENDING) of every tracked path.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			return runStatus(cmd.Context(), cc, long)
		},
	}

	cmd.Flags().BoolVar(&long, "long", false, "list every tracked path instead of just the summary")

	return cmd
}

// daemonState mirrors the IDLE/SYNCING/OFFLINE/ERROR/CONFLICT tray-state
// values; this command derives a coarse approximation from the lock file
// and local state DB rather than talking to a running daemon over IPC.
type daemonState string

const (
	daemonOffline daemonState = "OFFLINE"
	daemonIdle    daemonState = "IDLE"
	daemonPaused  daemonState = "PAUSED"
)

type statusReport struct {
	Daemon      daemonState            `json:"daemon"`
	PID         int                    `json:"pid,omitempty"`
	SyncFolder  string                 `json:"sync_folder"`
	Counts      map[localstate.Status]int `json:"counts"`
	Conflicts   []string               `json:"conflicts,omitempty"`
	Files       []statusFileEntry      `json:"files,omitempty"`
}

type statusFileEntry struct {
	Path   string           `json:"path"`
	Status localstate.Status `json:"status"`
}

func runStatus(ctx context.Context, cc *CLIContext, long bool) error {
	resolved := cc.Holder.Config()

	agentHome := filepath.Dir(cc.Holder.Path())

	report := &statusReport{
		Daemon:     daemonOffline,
		SyncFolder: resolved.SyncFolder,
		Counts:     make(map[localstate.Status]int),
	}

	if pid, err := supervise.ReadPID(config.LockFilePath(agentHome)); err == nil {
		report.Daemon = daemonIdle
		report.PID = pid
	}

	if report.Daemon != daemonOffline {
		if _, err := os.Stat(config.PauseFilePath(agentHome)); err == nil {
			report.Daemon = daemonPaused
		}
	}

	store, err := localstate.NewStore(ctx, config.StateDBPath(agentHome), cc.Logger)
	if err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("opening local state database: %w", err))
	}
	defer store.Close()

	records, err := store.ListSyncedFileRecords(ctx)
	if err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("listing synced records: %w", err))
	}

	syncRoot, err := config.ExpandHome(resolved.SyncFolder)
	if err != nil {
		return withExitCode(exitInternalError, err)
	}

	conflicts, err := conflict.FindConflictCopies(syncRoot)
	if err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("scanning for conflict copies: %w", err))
	}

	conflictOriginals := make(map[string]bool, len(conflicts))
	for _, c := range conflicts {
		conflictOriginals[c.OriginalPath] = true
	}

	for _, rec := range records {
		onDisk, mtime, size := statLocal(syncRoot, rec.Path)
		st := localstate.DeriveStatus(rec, onDisk, mtime, size)

		if conflictOriginals[rec.Path] {
			st = localstate.StatusConflictPending
		}

		report.Counts[st]++

		if long {
			report.Files = append(report.Files, statusFileEntry{Path: rec.Path, Status: st})
		}
	}

	for original := range conflictOriginals {
		report.Conflicts = append(report.Conflicts, original)
	}

	sort.Strings(report.Conflicts)
	sort.Slice(report.Files, func(i, j int) bool { return report.Files[i].Path < report.Files[j].Path })

	if cc.Flags.JSON {
		return printStatusJSON(report)
	}

	printStatusText(report)

	return nil
}

func statLocal(syncRoot, relPath string) (onDisk bool, mtime float64, size int64) {
	info, err := os.Stat(filepath.Join(syncRoot, relPath))
	if err != nil {
		return false, 0, 0
	}

	return true, float64(info.ModTime().UnixNano()) / 1e9, info.Size()
}

func printStatusJSON(report *statusReport) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printStatusText(report *statusReport) {
	switch report.Daemon {
	case daemonOffline:
		fmt.Println("Daemon: not running")
	case daemonPaused:
		fmt.Printf("Daemon: paused (PID %d)\n", report.PID)
	default:
		fmt.Printf("Daemon: running (PID %d)\n", report.PID)
	}

	fmt.Printf("Sync folder: %s\n\n", report.SyncFolder)

	for _, st := range []localstate.Status{
		localstate.StatusSynced, localstate.StatusNew, localstate.StatusModified,
		localstate.StatusDeleted, localstate.StatusConflictPending,
	} {
		if report.Counts[st] > 0 {
			fmt.Printf("  %-18s %d\n", st, report.Counts[st])
		}
	}

	if len(report.Conflicts) > 0 {
		fmt.Println("\nConflicts pending manual resolution:")
		for _, p := range report.Conflicts {
			fmt.Printf("  %s\n", p)
		}
	}

	if len(report.Files) > 0 {
		fmt.Println()
		rows := make([][]string, 0, len(report.Files))
		for _, f := range report.Files {
			rows = append(rows, []string{f.Path, string(f.Status)})
		}
		printTable(os.Stdout, []string{"PATH", "STATUS"}, rows)
	}
}
