package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Queue manages per-device lanes with a global concurrency semaphore.
// Each device gets its own FIFO channel (lane) so that requests from one
// device are processed sequentially, while the semaphore limits the total
// number of concurrent handlers across all devices.
type Queue struct {
	lanes     map[string]chan *Delivery
	inflight  map[string]bool
	semaphore *semaphore.Weighted
	processor func(*Delivery) error
	active    atomic.Int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewQueue creates a Queue that allows up to maxConcurrent deliveries to be
// handled simultaneously across all device lanes.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:     make(map[string]chan *Delivery),
		inflight:  make(map[string]bool),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// handlers to finish. Safe to call more than once; Enqueue after Stop is
// rejected rather than sent on a closed lane.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		for _, lane := range q.lanes {
			close(lane)
		}
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a Delivery to the device's lane, creating the lane (and its
// goroutine) on first use. Deliveries for a request already queued or being
// handled are dropped, so poll overlap does not fan out into duplicate
// handlers. Returns an error if the lane's buffer is full.
func (q *Queue) Enqueue(d *Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return fmt.Errorf("queue stopped")
	}
	if q.inflight[string(d.RequestID)] {
		return nil
	}

	lane, exists := q.lanes[d.DeviceID]
	if !exists {
		lane = make(chan *Delivery, 100)
		q.lanes[d.DeviceID] = lane
		q.wg.Add(1)
		go q.processLane(d.DeviceID, lane)
	}

	select {
	case lane <- d:
		q.inflight[string(d.RequestID)] = true
		return nil
	default:
		return fmt.Errorf("queue full for device %s", d.DeviceID)
	}
}

// processLane drains a single device lane, acquiring a semaphore slot before
// running the processor synchronously. This keeps strict FIFO ordering per
// device while the semaphore limits cross-device parallelism.
func (q *Queue) processLane(deviceID string, lane chan *Delivery) {
	defer q.wg.Done()
	for {
		select {
		case d, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				return
			}
			if q.processor != nil {
				q.active.Add(1)
				d.Ctx = q.ctx
				d.Status = DeliveryRunning
				if err := q.processor(d); err != nil {
					d.Status = DeliveryFailed
					slog.Error("delivery failed", "request_id", string(d.RequestID), "device_id", deviceID, "error", err)
				} else {
					d.Status = DeliveryComplete
				}
				q.active.Add(-1)
			}
			q.mu.Lock()
			delete(q.inflight, string(d.RequestID))
			q.mu.Unlock()
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			return
		}
	}
}

// WaitIdle blocks until no deliveries are actively being handled, or the
// timeout expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued Delivery.
func (q *Queue) SetProcessor(fn func(*Delivery) error) {
	q.processor = fn
}
