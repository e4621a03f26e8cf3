// Package keepwarm periodically pings the service's own public URL so
// free-tier hosts do not idle the instance out.
package keepwarm

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/m3rciful/surveybot/core/logger"
	"log/slog"
)

// Pinger issues a GET against a fixed URL on a fixed interval. Failures are
// logged and never interrupt the loop.
type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
}

// New returns a pinger, or nil when url is empty (the feature is off).
func New(url string, interval time.Duration, client *http.Client) *Pinger {
	if url == "" {
		return nil
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Pinger{url: url, interval: interval, client: client}
}

// Run pings until ctx is cancelled. A nil pinger returns immediately.
func (p *Pinger) Run(ctx context.Context) {
	if p == nil {
		return
	}

	logger.KW.Info("started",
		slog.String("event", "keepwarm.start"),
		slog.String("url", p.url),
		slog.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.KW.Info("stopped",
				slog.String("event", "keepwarm.stop"),
			)
			return
		case <-ticker.C:
			p.ping(ctx)
		}
	}
}

func (p *Pinger) ping(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.url, nil)
	if err != nil {
		logger.KW.Warn("ping failed",
			slog.String("event", "keepwarm.fail"),
			slog.String("err", err.Error()),
		)
		return
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		logger.KW.Warn("ping failed",
			slog.String("event", "keepwarm.fail"),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if logger.ShouldSampleDebug() {
		logger.KW.Debug("ping ok",
			slog.String("event", "keepwarm.ok"),
			slog.Int("code", resp.StatusCode),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}
