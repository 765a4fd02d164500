// Package cleanup removes sandbox databases left behind by finished
// sessions once they age past the configured retention window.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/sqlgym/internal/sandbox"
	"github.com/terra-clan/sqlgym/internal/storage"
)

// Cleaner periodically deletes sandbox files of finished sessions.
type Cleaner struct {
	repo      storage.Repository
	sandboxes *sandbox.Store
	interval  time.Duration
	retention time.Duration
	stop      chan struct{}
	done      chan struct{}
}

// New creates a cleaner. A retention of zero disables cleanup entirely,
// keeping sandbox files around for inspection.
func New(repo storage.Repository, sandboxes *sandbox.Store, interval, retention time.Duration) *Cleaner {
	return &Cleaner{
		repo:      repo,
		sandboxes: sandboxes,
		interval:  interval,
		retention: retention,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the cleanup loop in a background goroutine.
func (c *Cleaner) Start(ctx context.Context) {
	if c.retention <= 0 {
		slog.Info("sandbox cleanup disabled")
		close(c.done)
		return
	}

	slog.Info("starting sandbox cleanup", "interval", c.interval, "retention", c.retention)

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				c.runOnce(ctx)
			}
		}
	}()
}

// Stop signals the cleanup loop to exit and waits for it.
func (c *Cleaner) Stop() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	<-c.done
}

// runOnce removes sandbox files for sessions finished before the
// retention cutoff. Session rows stay in place so history survives.
func (c *Cleaner) runOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-c.retention)

	sessions, err := c.repo.ListFinishedSessionsBefore(ctx, cutoff)
	if err != nil {
		slog.Error("failed to list finished sessions", "error", err)
		return
	}

	removed := 0
	for _, session := range sessions {
		if err := c.sandboxes.Remove(session.ID); err != nil {
			slog.Warn("failed to remove sandbox", "session_id", session.ID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Info("sandbox cleanup pass complete", "removed", removed, "cutoff", cutoff)
	}
}
