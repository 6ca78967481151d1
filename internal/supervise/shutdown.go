package supervise

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownContext returns a context cancelled on the first SIGINT/SIGTERM,
// giving in-flight transfers a chance to reach a safe suspension point; a
// second signal force-exits immediately.
func ShutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("supervise: received signal, initiating graceful shutdown", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("supervise: received second signal, forcing exit", slog.String("signal", sig.String()))
			os.Exit(1)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}

// Reloader re-reads configuration on SIGHUP. The coordinator and change
// detector are not constructed with a config.Holder and do not see reloaded
// values.
type Reloader interface {
	Reload() error
}

// WatchReload invokes reload() on every SIGHUP received until ctx is done.
func WatchReload(ctx context.Context, logger *slog.Logger, reload func() error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigCh)

		for {
			select {
			case <-ctx.Done():
				return
			case <-sigCh:
				logger.Info("supervise: SIGHUP received, reloading configuration")

				if err := reload(); err != nil {
					logger.Error("supervise: reload failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
}
