package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/syncagent/syncagent/internal/config"
)

// skipConfigAnnotation marks commands that must run before a config file
// necessarily exists (init, register).
const skipConfigAnnotation = "syncagent:skip-config"

// cliFlags holds the root command's persistent flags.
type cliFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Debug      bool
	Quiet      bool
}

// CLIContext carries the resolved config and logger through a command's
// context.Value — one value stashed once in PersistentPreRunE rather than
// threaded through every function signature.
type CLIContext struct {
	Holder *config.Holder
	Logger *slog.Logger
	Flags  cliFlags
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) (*CLIContext, bool) {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc, ok
}

// mustCLIContext panics if called from a command whose PersistentPreRunE did
// not run (programming error, not a user-facing condition).
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := cliContextFrom(ctx)
	if !ok {
		panic("syncagent: CLIContext missing from command context")
	}

	return cc
}

// exitCodeError pins a specific process exit code to an error, per the exit
// code taxonomy: 0 success, 1 user error, 2 unrecoverable internal error,
// 3 not-initialized.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}

	return &exitCodeError{code: code, err: err}
}

const (
	exitUserError      = 1
	exitInternalError  = 2
	exitNotInitialized = 3
)

var errNotInitialized = withExitCode(exitNotInitialized,
	errors.New("not initialized — run 'syncagent init' first"))

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:           "syncagent",
		Short:         "Encrypted, content-addressed file sync agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			flagQuiet = flags.Quiet

			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return loadConfig(cmd, flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to config.toml (default ~/.syncagent/config.toml)")
	cmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "emit machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&flags.Verbose, "verbose", false, "info-level logging")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "debug-level logging")
	cmd.PersistentFlags().BoolVar(&flags.Quiet, "quiet", false, "suppress non-error status output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(
		newInitCmd(),
		newRegisterCmd(),
		newSyncCmd(),
		newStatusCmd(),
		newResolveCmd(),
		newPauseCmd(),
		newResumeCmd(),
		newConfigCmd(),
	)

	return cmd
}

// loadConfig resolves the config file path, loads and validates it, builds
// the logger, and stashes a *CLIContext on the command's context for
// subcommands to retrieve via mustCLIContext.
func loadConfig(cmd *cobra.Command, flags *cliFlags) error {
	cfgPath := flags.ConfigPath
	if cfgPath == "" {
		home, err := config.AgentHomeDir()
		if err != nil {
			return withExitCode(exitInternalError, fmt.Errorf("resolving agent home: %w", err))
		}

		cfgPath = config.ConfigFilePath(home)
	}

	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		return errNotInitialized
	}

	resolved, err := config.Load(cfgPath)
	if err != nil {
		return withExitCode(exitUserError, err)
	}

	logger := buildLogger(resolved, flags)

	cc := &CLIContext{
		Holder: config.NewHolder(resolved, cfgPath),
		Logger: logger,
		Flags:  *flags,
	}

	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

	return nil
}

// buildLogger resolves the effective log level: config.toml sets the
// baseline, --verbose/--debug/--quiet (mutually exclusive, enforced above)
// override it for this invocation only.
func buildLogger(resolved *config.Resolved, flags *cliFlags) *slog.Logger {
	level := parseLogLevel(resolved.Logging.LogLevel)

	switch {
	case flags.Debug:
		level = slog.LevelDebug
	case flags.Verbose:
		level = slog.LevelInfo
	case flags.Quiet:
		level = slog.LevelWarn
	}

	out := os.Stderr

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})

	return slog.New(handler)
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// exitOnError prints err to stderr and exits with its pinned code (or 1 if
// none is pinned).
func exitOnError(err error) {
	code := exitUserError

	var ece *exitCodeError
	if errors.As(err, &ece) {
		code = ece.code
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(code)
}
