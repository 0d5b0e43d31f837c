// internal/store/request.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/user/netpulse/internal/types"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// requestRecord is the sqlite row backing types.AnalysisRequest.
type requestRecord struct {
	ID           string `gorm:"primaryKey"`
	CreatedAt    time.Time
	RequestType  string
	Status       string `gorm:"index;not null;default:pending"`
	DeviceID     string `gorm:"index;not null"`
	Prompt       string `gorm:"type:text;not null"`
	ExpiresAt    *time.Time
	RetryCount   int `gorm:"not null;default:0"`
	ProcessingAt *time.Time
	CompletedAt  *time.Time
	Error        string `gorm:"type:text"`
}

func (requestRecord) TableName() string { return "requests" }

func (r *requestRecord) toDomain() *types.AnalysisRequest {
	var expiresAt time.Time
	if r.ExpiresAt != nil {
		expiresAt = *r.ExpiresAt
	}
	return &types.AnalysisRequest{
		ID:           types.RequestID(r.ID),
		Timestamp:    r.CreatedAt,
		RequestType:  types.RequestType(r.RequestType),
		Status:       types.RequestStatus(r.Status),
		DeviceID:     r.DeviceID,
		Prompt:       r.Prompt,
		ExpiresAt:    expiresAt,
		RetryCount:   r.RetryCount,
		ProcessingAt: r.ProcessingAt,
		CompletedAt:  r.CompletedAt,
		Error:        r.Error,
	}
}

// RequestStore is the sqlite-backed request collection.
type RequestStore struct {
	db *gorm.DB
}

// NewRequestStore creates a RequestStore on the given database handle.
func NewRequestStore(db *gorm.DB) *RequestStore {
	return &RequestStore{db: db}
}

// Create inserts a new request. The store assigns the identifier and the
// creation timestamp when the caller left them unset.
func (s *RequestStore) Create(ctx context.Context, req *types.AnalysisRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = types.NewRequestID()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	if req.Status == "" {
		req.Status = types.StatusPending
	}

	rec := requestRecord{
		ID:          string(req.ID),
		CreatedAt:   req.Timestamp,
		RequestType: string(req.RequestType),
		Status:      string(req.Status),
		DeviceID:    req.DeviceID,
		Prompt:      req.Prompt,
		RetryCount:  req.RetryCount,
	}
	if !req.ExpiresAt.IsZero() {
		rec.ExpiresAt = &req.ExpiresAt
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// Get returns the request with the given identifier.
func (s *RequestStore) Get(ctx context.Context, id types.RequestID) (*types.AnalysisRequest, error) {
	var rec requestRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return rec.toDomain(), nil
}

// List returns the most recent requests, newest first.
func (s *RequestStore) List(ctx context.Context, limit int) ([]*types.AnalysisRequest, error) {
	var recs []requestRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return toDomainList(recs), nil
}

// ListPending returns pending requests oldest first, so the watcher drains
// the backlog in arrival order.
func (s *RequestStore) ListPending(ctx context.Context, limit int) ([]*types.AnalysisRequest, error) {
	var recs []requestRecord
	err := s.db.WithContext(ctx).
		Where("status = ?", string(types.StatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return toDomainList(recs), nil
}

// Claim performs the compare-and-swap pending -> processing transition.
// Only one concurrent delivery can win the claim for a given identifier;
// losers get false with no error.
func (s *RequestStore) Claim(ctx context.Context, id types.RequestID) (bool, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&requestRecord{}).
		Where("id = ? AND status = ?", string(id), string(types.StatusPending)).
		Updates(map[string]any{
			"status":        string(types.StatusProcessing),
			"processing_at": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim request: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Complete transitions a processing request to completed.
func (s *RequestStore) Complete(ctx context.Context, id types.RequestID) error {
	return s.finish(ctx, id, types.StatusCompleted, "")
}

// Fail transitions a processing request to failed, recording the reason.
func (s *RequestStore) Fail(ctx context.Context, id types.RequestID, reason string) error {
	return s.finish(ctx, id, types.StatusFailed, reason)
}

func (s *RequestStore) finish(ctx context.Context, id types.RequestID, status types.RequestStatus, reason string) error {
	now := time.Now()
	updates := map[string]any{
		"status":       string(status),
		"completed_at": now,
	}
	if reason != "" {
		updates["error"] = reason
	}
	res := s.db.WithContext(ctx).
		Model(&requestRecord{}).
		Where("id = ? AND status = ?", string(id), string(types.StatusProcessing)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("mark request %s: %w", status, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("request %s is not processing", id)
	}
	return nil
}

// IncrementRetry bumps the retry counter for the request.
func (s *RequestStore) IncrementRetry(ctx context.Context, id types.RequestID) error {
	res := s.db.WithContext(ctx).
		Model(&requestRecord{}).
		Where("id = ?", string(id)).
		Update("retry_count", gorm.Expr("retry_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("increment retry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return nil
}

// FailStale closes out abandoned work: processing requests whose claim is
// older than the lease (the worker died mid-handle), and pending requests
// whose expires_at has passed (the producer stopped waiting).
func (s *RequestStore) FailStale(ctx context.Context, lease time.Duration, now time.Time) ([]types.RequestID, error) {
	cutoff := now.Add(-lease)

	var stale []requestRecord
	err := s.db.WithContext(ctx).
		Where("(status = ? AND processing_at < ?) OR (status = ? AND expires_at IS NOT NULL AND expires_at < ?)",
			string(types.StatusProcessing), cutoff,
			string(types.StatusPending), now).
		Find(&stale).Error
	if err != nil {
		return nil, fmt.Errorf("find stale requests: %w", err)
	}

	var failed []types.RequestID
	for _, rec := range stale {
		reason := "processing lease expired"
		if rec.Status == string(types.StatusPending) {
			reason = "request expired before processing"
		}
		res := s.db.WithContext(ctx).
			Model(&requestRecord{}).
			Where("id = ? AND status = ?", rec.ID, rec.Status).
			Updates(map[string]any{
				"status":       string(types.StatusFailed),
				"completed_at": now,
				"error":        reason,
			})
		if res.Error != nil {
			return failed, fmt.Errorf("fail stale request %s: %w", rec.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			failed = append(failed, types.RequestID(rec.ID))
		}
	}
	return failed, nil
}

func toDomainList(recs []requestRecord) []*types.AnalysisRequest {
	out := make([]*types.AnalysisRequest, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain())
	}
	return out
}
