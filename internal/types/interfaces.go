package types

import (
	"context"
	"time"
)

type RequestStore interface {
	Create(ctx context.Context, req *AnalysisRequest) error
	Get(ctx context.Context, id RequestID) (*AnalysisRequest, error)
	List(ctx context.Context, limit int) ([]*AnalysisRequest, error)
	ListPending(ctx context.Context, limit int) ([]*AnalysisRequest, error)

	// Claim atomically moves the request from pending to processing.
	// Returns false if the request was not pending (already claimed,
	// completed, or failed).
	Claim(ctx context.Context, id RequestID) (bool, error)

	Complete(ctx context.Context, id RequestID) error
	Fail(ctx context.Context, id RequestID, reason string) error
	IncrementRetry(ctx context.Context, id RequestID) error

	// FailStale fails processing requests whose claim is older than the
	// lease, and expired pending requests. Returns the IDs it failed.
	FailStale(ctx context.Context, lease time.Duration, now time.Time) ([]RequestID, error)
}

type ResponseStore interface {
	Create(ctx context.Context, resp *AnalysisResponse) error
	GetByRequest(ctx context.Context, id RequestID) (*AnalysisResponse, error)
}

type TelemetryStore interface {
	Insert(ctx context.Context, sample *TelemetrySample) error
	Recent(ctx context.Context, deviceID string, limit int) ([]*TelemetrySample, error)
	RecentAnomalies(ctx context.Context, limit int) ([]*TelemetrySample, error)
	Uncategorized(ctx context.Context, limit int) ([]*TelemetrySample, error)
	SetCategory(ctx context.Context, id SampleID, category string, isAnomaly bool) error
}
