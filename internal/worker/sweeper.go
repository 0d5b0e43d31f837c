package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/netpulse/internal/alert"
	"github.com/user/netpulse/internal/types"
)

// Sweeper fails requests stuck in processing past their lease (a worker died
// mid-handle) and pending requests past their expiry, so producers are never
// left waiting on a record nobody will finish.
type Sweeper struct {
	requests types.RequestStore
	alerts   *alert.Registry
	lease    time.Duration
}

// NewSweeper creates a sweeper with the given processing lease.
func NewSweeper(requests types.RequestStore, alerts *alert.Registry, lease time.Duration) *Sweeper {
	if lease <= 0 {
		lease = 10 * time.Minute
	}
	return &Sweeper{requests: requests, alerts: alerts, lease: lease}
}

// Run performs one sweep and returns the IDs it failed.
func (s *Sweeper) Run(ctx context.Context) ([]types.RequestID, error) {
	failed, err := s.requests.FailStale(ctx, s.lease, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("sweeping stale requests: %w", err)
	}
	if len(failed) == 0 {
		return nil, nil
	}

	slog.Warn("failed stale requests", "count", len(failed))

	if s.alerts != nil {
		ids := make([]string, len(failed))
		for i, id := range failed {
			ids[i] = string(id)
		}
		msg := fmt.Sprintf("%d stale requests failed by sweep: %s",
			len(failed), strings.Join(ids, ", "))
		if err := s.alerts.Notify(alert.TopicStaleRequests, msg); err != nil {
			slog.Debug("alert notify failed", "error", err)
		}
	}
	return failed, nil
}
