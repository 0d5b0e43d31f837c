//go:build integration

package test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/netpulse/internal/prompt"
	"github.com/user/netpulse/internal/store"
	"github.com/user/netpulse/internal/types"
	"github.com/user/netpulse/internal/watcher"
	"github.com/user/netpulse/internal/worker"
	"github.com/user/netpulse/pkg/llm"
)

func TestEndToEnd(t *testing.T) {
	dir := t.TempDir()

	db, err := store.Open(filepath.Join(dir, "netpulse.db"))
	if err != nil {
		t.Fatal(err)
	}
	requests := store.NewRequestStore(db)
	responses := store.NewResponseStore(db)
	samples := store.NewTelemetryStore(db)

	builder, err := prompt.New("gpt-4", 128000, 4096)
	if err != nil {
		t.Fatal(err)
	}

	var llmCalls int32
	provider := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
			atomic.AddInt32(&llmCalls, 1)
			time.Sleep(20 * time.Millisecond)
			return &llm.Response{
				Content: "All quiet.\n" + `{"confidence": 0.95, "suggestions": []}`,
				Usage:   llm.Usage{TotalTokens: 50},
			}, nil
		},
	}

	handler := worker.NewHandler(requests, responses, samples, provider, builder, "mock-model", worker.Options{})

	w := watcher.New(requests, 20*time.Millisecond, 2)
	w.Queue.SetProcessor(handler.Handle)

	ctx := context.Background()

	// Seed pending requests before the watcher starts; a fresh start must
	// pick up the existing backlog.
	var ids []types.RequestID
	for i := 0; i < 5; i++ {
		req := &types.AnalysisRequest{
			RequestType: types.TypeGeneralQuery,
			DeviceID:    "device-1",
			Prompt:      "how is the network?",
		}
		if err := requests.Create(ctx, req); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, req.ID)
	}

	w.Start(ctx)

	deadline := time.After(10 * time.Second)
	for {
		pending, err := requests.ListPending(ctx, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) == 0 && w.Queue.WaitIdle(time.Second) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for backlog to drain")
		case <-time.After(50 * time.Millisecond):
		}
	}
	w.Stop()

	// Every request must be completed with exactly one correlated response.
	for _, id := range ids {
		req, err := requests.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if req.Status != types.StatusCompleted {
			t.Errorf("request %s: expected completed, got %s", id, req.Status)
		}

		resp, err := responses.GetByRequest(ctx, id)
		if err != nil {
			t.Fatalf("request %s has no response: %v", id, err)
		}
		if !resp.Success {
			t.Errorf("request %s: expected success response", id)
		}
		if resp.DeviceID != "device-1" {
			t.Errorf("request %s: device_id not copied", id)
		}
		if resp.Metadata["model"] != "mock-model" {
			t.Errorf("request %s: missing model metadata", id)
		}
	}

	// The fast poll interval redelivers pending requests many times; the
	// claim must have kept the provider at one call per request.
	if n := atomic.LoadInt32(&llmCalls); n != 5 {
		t.Errorf("expected 5 llm calls, got %d", n)
	}
}

func TestEndToEndFailure(t *testing.T) {
	dir := t.TempDir()

	db, err := store.Open(filepath.Join(dir, "netpulse.db"))
	if err != nil {
		t.Fatal(err)
	}
	requests := store.NewRequestStore(db)
	responses := store.NewResponseStore(db)
	samples := store.NewTelemetryStore(db)

	builder, err := prompt.New("gpt-4", 128000, 4096)
	if err != nil {
		t.Fatal(err)
	}

	provider := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
			return nil, permanentError{}
		},
	}

	handler := worker.NewHandler(requests, responses, samples, provider, builder, "mock-model", worker.Options{
		Retry: &watcher.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond},
	})

	w := watcher.New(requests, 20*time.Millisecond, 1)
	w.Queue.SetProcessor(handler.Handle)

	ctx := context.Background()
	req := &types.AnalysisRequest{
		RequestType: types.TypeGeneralQuery,
		DeviceID:    "device-1",
		Prompt:      "anything",
	}
	if err := requests.Create(ctx, req); err != nil {
		t.Fatal(err)
	}

	w.Start(ctx)
	defer w.Stop()

	deadline := time.After(5 * time.Second)
	for {
		got, err := requests.Get(ctx, req.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == types.StatusFailed {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("request never failed, status %s", got.Status)
		case <-time.After(50 * time.Millisecond):
		}
	}

	resp, err := responses.GetByRequest(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success {
		t.Error("expected failure response")
	}
	if resp.Error == nil {
		t.Error("expected error text on failure response")
	}
}

type permanentError struct{}

func (permanentError) Error() string { return "unauthorized: simulated permanent failure" }
