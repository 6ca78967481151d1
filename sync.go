package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/syncagent/syncagent/internal/chunker"
	"github.com/syncagent/syncagent/internal/config"
	"github.com/syncagent/syncagent/internal/coordinator"
	"github.com/syncagent/syncagent/internal/detector"
	"github.com/syncagent/syncagent/internal/ignorefile"
	"github.com/syncagent/syncagent/internal/localstate"
	"github.com/syncagent/syncagent/internal/queue"
	"github.com/syncagent/syncagent/internal/supervise"
	"github.com/syncagent/syncagent/internal/transfer"
	"github.com/syncagent/syncagent/internal/workerpool"
)

func newSyncCmd() *cobra.Command {
	var masterPassword string
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle, or run continuously with --watch",
		Long: `Without --watch, scan the local tree and poll remote changes once, drain
the resulting events, and exit.

With --watch, acquire the single-instance daemon lock and run continuously:
an fsnotify watcher plus a periodic remote poll feed events to the
coordinator, which dispatches them to a fixed worker pool. SIGINT/SIGTERM
trigger a graceful shutdown; SIGHUP re-reads config.toml and .syncignore
without restarting (the server URL and auth token stay those loaded at
startup).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			if watch {
				return runSyncWatch(cc, masterPassword)
			}

			return runSyncOnce(cmd.Context(), cc, masterPassword)
		},
	}

	cmd.Flags().StringVar(&masterPassword, "master-password", "", "master password unlocking the local keystore (or "+masterPasswordEnvVar+")")
	cmd.Flags().BoolVar(&watch, "watch", false, "run continuously as a daemon instead of one cycle")

	return cmd
}

// dispatcherFunc adapts a plain function to coordinator.Dispatcher, the way
// http.HandlerFunc adapts a function to http.Handler — lets buildSyncCycle
// close over the not-yet-constructed *workerpool.Pool without a setter on
// either package.
type dispatcherFunc func(ctx context.Context, task transfer.Task)

func (f dispatcherFunc) Submit(ctx context.Context, task transfer.Task) { f(ctx, task) }

// syncCycle holds the pieces shared by one-shot and --watch sync: the
// detector, coordinator, and worker pool wired together against one
// syncEnv. Built once and reused every cycle in --watch mode.
type syncCycle struct {
	env     *syncEnv
	store   localstate.Store
	ignore  *ignorefile.Matcher
	scanner *detector.Scanner
	q       *queue.Queue
	pool    *workerpool.Pool
	coord   *coordinator.Coordinator
}

func buildSyncCycle(ctx context.Context, cc *CLIContext, masterPassword string) (*syncCycle, error) {
	env, err := buildSyncEnv(cc, masterPassword)
	if err != nil {
		return nil, withExitCode(exitUserError, err)
	}

	store, err := localstate.NewStore(ctx, config.StateDBPath(env.home), cc.Logger)
	if err != nil {
		return nil, withExitCode(exitInternalError, fmt.Errorf("opening local state database: %w", err))
	}

	ignore := ignorefile.New(env.syncRoot, cc.Logger)

	resolved := env.resolved
	splitter := chunker.New(resolved.CDCMin, resolved.CDCAvg, resolved.CDCMax)

	q := queue.New()

	scanner := detector.NewScanner(store, ignore, env.client, q, cc.Logger)

	var pool *workerpool.Pool

	coord := coordinator.New(env.syncRoot, q, store,
		dispatcherFunc(func(ctx context.Context, task transfer.Task) { pool.Submit(ctx, task) }),
		cc.Logger)

	pool = workerpool.New(env.syncRoot, store, env.client, env.client, env.keys, splitter,
		env.resolver, coord, cc.Logger, resolved.Workers.Count)

	return &syncCycle{
		env:     env,
		store:   store,
		ignore:  ignore,
		scanner: scanner,
		q:       q,
		pool:    pool,
		coord:   coord,
	}, nil
}

func (sc *syncCycle) Close() {
	sc.store.Close()
}

func runSyncOnce(ctx context.Context, cc *CLIContext, masterPassword string) error {
	sc, err := buildSyncCycle(ctx, cc, masterPassword)
	if err != nil {
		return err
	}
	defer sc.Close()

	// The local walk and the remote changes-since poll touch disjoint state
	// (the filesystem vs. the remote API) until TrackRemoteBatch runs, so
	// they run concurrently via errgroup rather than back to back.
	var batch *detector.RemoteBatch

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sc.scanner.ScanLocal(gctx, sc.env.syncRoot)
	})

	g.Go(func() error {
		b, err := sc.scanner.PollRemote(gctx)
		if err != nil {
			return err
		}

		batch = b

		return nil
	})

	if err := g.Wait(); err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("initial scan: %w", err))
	}

	if err := sc.coord.TrackRemoteBatch(ctx, batch); err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("tracking remote batch: %w", err))
	}

	total := sc.q.Size()
	sc.pool.Start(ctx, sc.env.resolved.Workers.Count)

	coordDone := make(chan error, 1)
	go func() { coordDone <- sc.coord.Run(ctx) }()

	for sc.q.Size() > 0 {
		time.Sleep(50 * time.Millisecond)
	}

	sc.q.Close()
	<-coordDone

	sc.pool.Stop()

	succeeded, failed, errs := sc.pool.Stats()
	statusf("Sync complete: %d events, %d succeeded, %d failed\n", total, succeeded, failed)

	for _, e := range errs {
		statusf("  error: %v\n", e)
	}

	if failed > 0 {
		return withExitCode(exitInternalError, fmt.Errorf("%d transfers failed", failed))
	}

	return nil
}

func runSyncWatch(cc *CLIContext, masterPassword string) error {
	home := filepath.Dir(cc.Holder.Path())

	lock, err := supervise.Acquire(config.LockFilePath(home))
	if err != nil {
		return withExitCode(exitInternalError, err)
	}
	defer lock.Release()

	ctx := supervise.ShutdownContext(context.Background(), cc.Logger)

	sc, err := buildSyncCycle(ctx, cc, masterPassword)
	if err != nil {
		return err
	}
	defer sc.Close()

	supervise.WatchReload(ctx, cc.Logger, func() error {
		resolved, err := cc.Holder.Reload()
		if err != nil {
			return err
		}

		sc.ignore.Reload()
		sc.env.resolved = resolved

		return nil
	})

	if err := sc.scanner.ScanLocal(ctx, sc.env.syncRoot); err != nil {
		cc.Logger.Error("sync: initial scan failed", "error", err.Error())
	}

	sc.pool.Start(ctx, sc.env.resolved.Workers.Count)

	coordErrCh := make(chan error, 1)
	go func() { coordErrCh <- sc.coord.Run(ctx) }()

	watcher, err := detector.NewWatcher(sc.env.syncRoot, sc.ignore, sc.q, cc.Logger)
	if err != nil {
		return withExitCode(exitInternalError, fmt.Errorf("starting filesystem watcher: %w", err))
	}
	defer watcher.Close()

	watcherErrCh := make(chan error, 1)
	go func() { watcherErrCh <- watcher.Run(ctx) }()

	pollTicker := time.NewTicker(sc.env.resolved.ScanInterval)
	defer pollTicker.Stop()

	pauseFile := config.PauseFilePath(home)

	statusf("syncagent watching %s (PID %d)\n", sc.env.syncRoot, os.Getpid())

	for {
		select {
		case <-ctx.Done():
			sc.q.Close()
			sc.pool.Stop()
			<-coordErrCh
			return nil

		case <-pollTicker.C:
			if isPaused(pauseFile) {
				continue
			}

			batch, err := sc.scanner.PollRemote(ctx)
			if err != nil {
				cc.Logger.Error("sync: remote poll failed", "error", err.Error())
				continue
			}

			if err := sc.coord.TrackRemoteBatch(ctx, batch); err != nil {
				cc.Logger.Error("sync: tracking remote batch failed", "error", err.Error())
			}

		case err := <-watcherErrCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				cc.Logger.Error("sync: filesystem watcher exited", "error", err.Error())
			}

		case err := <-coordErrCh:
			sc.pool.Stop()

			if err != nil && !errors.Is(err, context.Canceled) {
				return withExitCode(exitInternalError, fmt.Errorf("coordinator exited: %w", err))
			}

			return nil
		}
	}
}

func isPaused(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
