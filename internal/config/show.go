package config

import (
	"fmt"
	"io"
)

// errWriter wraps an io.Writer and captures the first write error so chained
// printf calls don't need individual error checks.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary, for the "config show" command.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration\n\n")
	ew.printf("sync_folder = %q\n", r.SyncFolder)
	ew.printf("server_url  = %q\n", r.ServerURL)
	ew.printf("auth_token  = %s\n\n", maskToken(r.AuthToken))

	ew.printf("[cdc]\n")
	ew.printf("  min = %q (%d bytes)\n", r.CDC.Min, r.CDCMin)
	ew.printf("  avg = %q (%d bytes)\n", r.CDC.Avg, r.CDCAvg)
	ew.printf("  max = %q (%d bytes)\n\n", r.CDC.Max, r.CDCMax)

	ew.printf("[workers]\n")
	ew.printf("  worker_count    = %d\n", r.Workers.Count)
	ew.printf("  max_retries     = %d\n", r.Workers.MaxRetries)
	ew.printf("  retry_max_delay = %s\n\n", r.RetryMaxDelay)

	ew.printf("[sync]\n")
	ew.printf("  scan_interval = %s\n", r.ScanInterval)
	ew.printf("  debounce_ms   = %d\n", r.SyncTimes.DebounceMs)
	ew.printf("  settle_ms     = %d\n\n", r.SyncTimes.SettleMs)

	ew.printf("[ignore]\n")
	ew.printf("  ignore_patterns = %v\n\n", r.Ignore.Patterns)

	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", r.Logging.LogLevel)
	ew.printf("  log_file   = %q\n", r.Logging.LogFile)
	ew.printf("  log_format = %q\n\n", r.Logging.LogFormat)

	ew.printf("[network]\n")
	ew.printf("  connect_timeout = %s\n", r.ConnectTimeout)
	ew.printf("  read_timeout    = %s\n", r.ReadTimeout)
	ew.printf("  user_agent      = %q\n", r.Network.UserAgent)

	return ew.err
}

// maskToken redacts everything but the last 4 characters of a bearer token.
func maskToken(token string) string {
	if token == "" {
		return `""`
	}

	const visible = 4
	if len(token) <= visible {
		return "****"
	}

	return fmt.Sprintf("%q", "****"+token[len(token)-visible:])
}
