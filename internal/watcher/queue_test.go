package watcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/netpulse/internal/types"
)

func testDelivery(requestID, deviceID string) *Delivery {
	return NewDelivery(&types.AnalysisRequest{
		ID:       types.RequestID(requestID),
		DeviceID: deviceID,
		Status:   types.StatusPending,
	})
}

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue(2)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var running int32
	var maxSeen int32

	queue.processor = func(d *Delivery) error {
		current := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&maxSeen)
			if current <= old || atomic.CompareAndSwapInt32(&maxSeen, old, current) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	}

	for i := 0; i < 5; i++ {
		d := testDelivery(fmt.Sprintf("req-%d", i), fmt.Sprintf("device-%d", i))
		if err := queue.Enqueue(d); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(500 * time.Millisecond)

	if m := atomic.LoadInt32(&maxSeen); m > 2 {
		t.Errorf("expected max 2 concurrent, saw %d", m)
	}
}

func TestQueueProcessorCalled(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var processed int32

	queue.SetProcessor(func(d *Delivery) error {
		atomic.AddInt32(&processed, 1)
		return nil
	})

	if err := queue.Enqueue(testDelivery("req-1", "device-1")); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	if atomic.LoadInt32(&processed) != 1 {
		t.Errorf("expected 1 processed delivery, got %d", processed)
	}
}

func TestQueueSameDeviceOrdering(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	queue.SetProcessor(func(d *Delivery) error {
		mu.Lock()
		order = append(order, string(d.RequestID))
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	})

	for i := 0; i < 3; i++ {
		d := testDelivery(fmt.Sprintf("req-%d", i), "same-device")
		if err := queue.Enqueue(d); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deliveries to process")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, id := range order {
		if id != fmt.Sprintf("req-%d", i) {
			t.Errorf("expected order[%d] = req-%d, got %s", i, i, id)
		}
	}
}

func TestQueueDropsDuplicateInflight(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var processed int32
	release := make(chan struct{})

	queue.SetProcessor(func(d *Delivery) error {
		atomic.AddInt32(&processed, 1)
		<-release
		return nil
	})

	// First delivery occupies the handler; the redelivery of the same
	// request must be dropped, not queued behind it.
	if err := queue.Enqueue(testDelivery("req-dup", "device-1")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := queue.Enqueue(testDelivery("req-dup", "device-1")); err != nil {
		t.Fatal(err)
	}
	close(release)

	time.Sleep(200 * time.Millisecond)

	if n := atomic.LoadInt32(&processed); n != 1 {
		t.Errorf("expected 1 processed delivery, got %d", n)
	}
}

func TestQueueEnqueueAfterStop(t *testing.T) {
	queue := NewQueue(1)
	queue.Start(context.Background())
	queue.SetProcessor(func(d *Delivery) error { return nil })

	if err := queue.Enqueue(testDelivery("req-1", "device-1")); err != nil {
		t.Fatal(err)
	}
	queue.Stop()

	// A poll racing shutdown must get an error back, not send on a
	// closed lane.
	if err := queue.Enqueue(testDelivery("req-2", "device-1")); err == nil {
		t.Error("expected error enqueueing after Stop")
	}

	// Stop is idempotent.
	queue.Stop()
}

func TestQueueNoProcessor(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	// Enqueue without setting a processor -- should not panic
	if err := queue.Enqueue(testDelivery("req-1", "no-proc")); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
}
