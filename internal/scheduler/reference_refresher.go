// Package scheduler runs periodic background jobs.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sectorfolio/sectorfolio/internal/logging"
	"github.com/sectorfolio/sectorfolio/internal/reference"
)

// Reloader installs a fresh reference snapshot.
type Reloader interface {
	Reload(ctx context.Context) (*reference.Snapshot, error)
}

// ReferenceRefresher periodically reloads the company registry so new or
// delisted companies are picked up without a restart.
type ReferenceRefresher struct {
	reloader Reloader
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	stopOnce sync.Once
	stopChan chan struct{}
}

func NewReferenceRefresher(reloader Reloader, interval time.Duration, logger *slog.Logger) *ReferenceRefresher {
	timeout := interval / 2
	if timeout <= 0 || timeout > time.Minute {
		timeout = time.Minute
	}
	return &ReferenceRefresher{
		reloader: reloader,
		interval: interval,
		timeout:  timeout,
		logger:   logging.Component(logger, "scheduler"),
		stopChan: make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called. The initial load is the
// caller's job; the first refresh happens one interval after Start.
func (s *ReferenceRefresher) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("reference refresh disabled")
		return
	}

	s.logger.Info("starting reference refresher", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refresh(ctx)
		case <-s.stopChan:
			s.logger.Info("reference refresher stopped")
			return
		case <-ctx.Done():
			s.logger.Info("reference refresher stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the refresher. It is safe to call more than once.
func (s *ReferenceRefresher) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *ReferenceRefresher) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	snap, err := s.reloader.Reload(ctx)
	if err != nil {
		s.logger.Error("reference refresh failed, keeping previous snapshot", "error", err)
		return
	}
	s.logger.Debug("reference refreshed",
		"version", snap.Version,
		"companies", len(snap.Companies),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
