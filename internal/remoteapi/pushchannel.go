package remoteapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// PushChannel maintains the optional low-latency "/ws/changes" WebSocket
// connection. It is a pure optimization: every change it
// surfaces is also discoverable by the periodic GET /changes poll, so a
// connection that never comes up must not prevent sync from functioning.
type PushChannel struct {
	url    string
	token  string
	logger *slog.Logger
}

// NewPushChannel builds a PushChannel for wsURL (e.g.
// "wss://host/ws/changes").
func NewPushChannel(wsURL, token string, logger *slog.Logger) *PushChannel {
	if logger == nil {
		logger = slog.Default()
	}

	return &PushChannel{url: wsURL, token: token, logger: logger}
}

// Run connects and redelivers PushEvents on events until ctx is canceled,
// reconnecting with exponential backoff (1s doubling to a 60s cap) whenever
// the connection drops. Run never returns an error for a dropped connection
// — only for ctx cancellation — since the channel is advisory, not required
// for correctness.
func (p *PushChannel) Run(ctx context.Context, events chan<- PushEvent) error {
	attempt := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := p.runOnce(ctx, events)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		backoff := calcReconnectBackoff(attempt)
		p.logger.Warn("push channel disconnected, reconnecting",
			slog.String("error", errString(err)), slog.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		attempt++
	}
}

func (p *PushChannel) runOnce(ctx context.Context, events chan<- PushEvent) error {
	conn, _, err := websocket.Dial(ctx, p.url, &websocket.DialOptions{
		HTTPHeader: authHeader(p.token),
	})
	if err != nil {
		return fmt.Errorf("remoteapi: dial push channel: %w", err)
	}
	defer conn.CloseNow()

	p.logger.Info("push channel connected")

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()

	go p.heartbeat(pingCtx, conn)

	for {
		var raw json.RawMessage

		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			return fmt.Errorf("remoteapi: reading push event: %w", err)
		}

		var evt PushEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			p.logger.Warn("discarding malformed push event", slog.String("error", err.Error()))
			continue
		}

		select {
		case events <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// heartbeat sends client->server {"type":"ping"} every 30s to keep the
// connection alive through intermediate proxies.
func (p *PushChannel) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wsjson.Write(ctx, conn, map[string]string{"type": "ping"}); err != nil {
				return
			}
		}
	}
}

func calcReconnectBackoff(attempt int) time.Duration {
	const (
		base = 1 * time.Second
		cap_ = 60 * time.Second
	)

	backoff := float64(base) * math.Pow(2, float64(attempt))
	if backoff > float64(cap_) {
		backoff = float64(cap_)
	}

	jitter := backoff * 0.25 * rand.Float64() //nolint:gosec // reconnect timing only
	backoff += jitter

	return time.Duration(backoff)
}

func authHeader(token string) map[string][]string {
	return map[string][]string{"Authorization": {"Bearer " + token}}
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return strings.TrimSpace(err.Error())
}
