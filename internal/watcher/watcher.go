// Package watcher observes the request store for pending analysis requests
// and dispatches them to the handler through a bounded queue.
package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/user/netpulse/internal/types"
)

const defaultBatchSize = 50

// Watcher polls the request store for pending records and enqueues a
// Delivery for each one. It has an explicit Start/Stop lifecycle; a fresh
// start re-delivers whatever is currently pending, which is safe because
// the handler claims before working.
type Watcher struct {
	requests types.RequestStore
	Queue    *Queue
	interval time.Duration
	batch    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Watcher polling at the given interval with the given
// concurrency limit for simultaneous request handling.
func New(requests types.RequestStore, interval time.Duration, maxConcurrent int64) *Watcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		requests: requests,
		Queue:    NewQueue(maxConcurrent),
		interval: interval,
		batch:    defaultBatchSize,
	}
}

// Start begins polling. The queue's processor must be set before Start.
func (w *Watcher) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.Queue.Start(w.ctx)

	w.wg.Add(1)
	go w.loop()
}

// Stop cancels polling, stops the queue, and waits for outstanding work.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.Queue.Stop()
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Dispatch immediately on start so a backlog is not left waiting for
	// the first tick.
	w.dispatch()

	for {
		select {
		case <-ticker.C:
			w.dispatch()
		case <-w.ctx.Done():
			return
		}
	}
}

// dispatch enqueues every currently-pending request. Errors are logged and
// retried on the next tick; the store being briefly unreachable must not
// kill the watcher.
func (w *Watcher) dispatch() {
	pending, err := w.requests.ListPending(w.ctx, w.batch)
	if err != nil {
		slog.Error("list pending requests failed", "error", err)
		return
	}

	for _, req := range pending {
		if err := w.Queue.Enqueue(NewDelivery(req)); err != nil {
			slog.Warn("enqueue delivery failed", "request_id", string(req.ID), "error", err)
		}
	}
}
