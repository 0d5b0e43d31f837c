// Package worker turns claimed analysis requests into correlated response
// records by calling the configured LLM provider.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/user/netpulse/internal/alert"
	"github.com/user/netpulse/internal/prompt"
	"github.com/user/netpulse/internal/ratelimit"
	"github.com/user/netpulse/internal/store"
	"github.com/user/netpulse/internal/types"
	"github.com/user/netpulse/internal/watcher"
	"github.com/user/netpulse/pkg/llm"
)

const telemetryContextSize = 20

// Handler processes one delivery end to end: claim, prompt, LLM call,
// response write, status transition.
type Handler struct {
	requests  types.RequestStore
	responses types.ResponseStore
	telemetry types.TelemetryStore
	provider  llm.Provider
	builder   *prompt.Builder
	limiter   ratelimit.Limiter
	alerts    *alert.Registry
	retry     *watcher.RetryPolicy
	timeout   time.Duration
	model     string
}

// Options configures optional handler collaborators.
type Options struct {
	Limiter ratelimit.Limiter
	Alerts  *alert.Registry
	Retry   *watcher.RetryPolicy
	Timeout time.Duration
}

// NewHandler wires a handler. Model names the configured model for response
// metadata.
func NewHandler(
	requests types.RequestStore,
	responses types.ResponseStore,
	telemetry types.TelemetryStore,
	provider llm.Provider,
	builder *prompt.Builder,
	model string,
	opts Options,
) *Handler {
	h := &Handler{
		requests:  requests,
		responses: responses,
		telemetry: telemetry,
		provider:  provider,
		builder:   builder,
		limiter:   opts.Limiter,
		alerts:    opts.Alerts,
		retry:     opts.Retry,
		timeout:   opts.Timeout,
		model:     model,
	}
	if h.limiter == nil {
		h.limiter = ratelimit.Noop{}
	}
	if h.retry == nil {
		h.retry = watcher.DefaultRetryPolicy()
	}
	if h.timeout <= 0 {
		h.timeout = 2 * time.Minute
	}
	return h
}

// Handle processes one delivery. A delivery that loses the claim race, or is
// rate-limited, returns nil: the former is already being handled elsewhere,
// the latter stays pending for a later poll. Only store-unavailable errors
// propagate; everything else becomes a failure response.
func (h *Handler) Handle(d *watcher.Delivery) error {
	ctx := d.Ctx
	req := d.Request

	allowed, err := h.limiter.Allow(ctx, req.DeviceID)
	if err != nil {
		// A broken limiter should not stall analysis; log and continue.
		slog.Warn("rate limiter check failed", "device_id", req.DeviceID, "error", err)
	} else if !allowed {
		slog.Debug("device rate limited, leaving request pending",
			"request_id", string(req.ID), "device_id", req.DeviceID)
		return nil
	}

	claimed, err := h.requests.Claim(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("claiming request %s: %w", req.ID, err)
	}
	if !claimed {
		slog.Debug("request already claimed", "request_id", string(req.ID))
		return nil
	}

	slog.Info("processing request",
		"request_id", string(req.ID),
		"request_type", string(req.RequestType),
		"device_id", req.DeviceID)

	start := time.Now()
	content, usage, llmErr := h.generate(ctx, req)
	elapsed := time.Since(start)

	if llmErr != nil {
		return h.fail(ctx, req, llmErr, elapsed)
	}
	return h.complete(ctx, req, content, usage, elapsed)
}

// generate builds the prompt and calls the provider under the configured
// timeout, retrying transient failures. Each retry increments the request's
// retry_count so producers can see how hard the worker had to work.
func (h *Handler) generate(ctx context.Context, req *types.AnalysisRequest) (string, llm.Usage, error) {
	samples, err := h.telemetryContext(ctx, req)
	if err != nil {
		// Telemetry context is best-effort; analyze without it.
		slog.Warn("loading telemetry context failed", "request_id", string(req.ID), "error", err)
	}

	messages, err := h.builder.Build(req, samples)
	if err != nil {
		return "", llm.Usage{}, fmt.Errorf("building prompt: %w", err)
	}

	var resp *llm.Response
	execErr := h.retry.Execute(func() error {
		callCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		r, err := h.provider.Generate(callCtx, messages)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, func(attempt int) {
		slog.Warn("llm call failed, retrying",
			"request_id", string(req.ID), "attempt", attempt)
		if err := h.requests.IncrementRetry(ctx, req.ID); err != nil {
			slog.Warn("increment retry count failed", "request_id", string(req.ID), "error", err)
		}
	})
	if execErr != nil {
		return "", llm.Usage{}, execErr
	}
	// A blank reply is useless to the producer; a completed request must
	// carry analysis text.
	if strings.TrimSpace(resp.Content) == "" {
		return "", resp.Usage, errors.New("provider returned empty content")
	}
	return resp.Content, resp.Usage, nil
}

// telemetryContext selects the telemetry rows worth showing the model.
func (h *Handler) telemetryContext(ctx context.Context, req *types.AnalysisRequest) ([]*types.TelemetrySample, error) {
	if h.telemetry == nil {
		return nil, nil
	}
	switch req.RequestType {
	case types.TypeAnalyzeAnomaly, types.TypeSuggestHealing:
		return h.telemetry.Recent(ctx, req.DeviceID, telemetryContextSize)
	case types.TypeAnalyzeCorrelations:
		// Correlations look across devices.
		return h.telemetry.RecentAnomalies(ctx, telemetryContextSize)
	default:
		return nil, nil
	}
}

func (h *Handler) complete(ctx context.Context, req *types.AnalysisRequest, content string, usage llm.Usage, elapsed time.Duration) error {
	body, confidence, suggestions := parseStructured(content)

	resp := &types.AnalysisResponse{
		ID:          types.NewResponseID(),
		Timestamp:   time.Now().UTC(),
		RequestID:   req.ID,
		DeviceID:    req.DeviceID,
		Response:    body,
		Success:     true,
		Confidence:  confidence,
		Suggestions: suggestions,
		Metadata: map[string]string{
			"model":              h.model,
			"processing_time_ms": strconv.FormatInt(elapsed.Milliseconds(), 10),
			"total_tokens":       strconv.Itoa(usage.TotalTokens),
		},
	}

	if err := h.responses.Create(ctx, resp); err != nil {
		if errors.Is(err, store.ErrDuplicateResponse) {
			// Another worker got here first; its response stands. This
			// claim still owns the status, so finish the transition rather
			// than leave the request for the sweeper to fail.
			slog.Warn("duplicate response discarded", "request_id", string(req.ID))
			if cerr := h.requests.Complete(ctx, req.ID); cerr != nil {
				slog.Debug("complete after duplicate response", "request_id", string(req.ID), "error", cerr)
			}
			return nil
		}
		return fmt.Errorf("writing response for %s: %w", req.ID, err)
	}

	if err := h.requests.Complete(ctx, req.ID); err != nil {
		return fmt.Errorf("completing request %s: %w", req.ID, err)
	}

	slog.Info("request completed",
		"request_id", string(req.ID),
		"processing_time_ms", elapsed.Milliseconds())
	return nil
}

func (h *Handler) fail(ctx context.Context, req *types.AnalysisRequest, llmErr error, elapsed time.Duration) error {
	slog.Error("request failed", "request_id", string(req.ID), "error", llmErr)

	reason := llmErr.Error()
	resp := &types.AnalysisResponse{
		ID:        types.NewResponseID(),
		Timestamp: time.Now().UTC(),
		RequestID: req.ID,
		DeviceID:  req.DeviceID,
		Response:  "",
		Success:   false,
		Error:     &reason,
		Metadata: map[string]string{
			"model":              h.model,
			"processing_time_ms": strconv.FormatInt(elapsed.Milliseconds(), 10),
		},
	}

	if err := h.responses.Create(ctx, resp); err != nil && !errors.Is(err, store.ErrDuplicateResponse) {
		return fmt.Errorf("writing failure response for %s: %w", req.ID, err)
	}

	if err := h.requests.Fail(ctx, req.ID, reason); err != nil {
		return fmt.Errorf("failing request %s: %w", req.ID, err)
	}

	if h.alerts != nil {
		msg := fmt.Sprintf("request %s (%s) for device %s failed: %s",
			req.ID, req.RequestType, req.DeviceID, reason)
		if err := h.alerts.Notify(alert.TopicRequestFailed, msg); err != nil {
			slog.Debug("alert notify failed", "error", err)
		}
	}
	return nil
}
