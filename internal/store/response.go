// internal/store/response.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/user/netpulse/internal/types"
)

// ErrDuplicateResponse is returned when a response already exists for the
// request. The unique index on request_id is what enforces the
// one-response-per-request invariant under concurrent writers.
var ErrDuplicateResponse = errors.New("response already exists for request")

// responseRecord is the sqlite row backing types.AnalysisResponse.
// Suggestions and metadata are stored as JSON text columns.
type responseRecord struct {
	ID          string `gorm:"primaryKey"`
	CreatedAt   time.Time
	RequestID   string `gorm:"uniqueIndex;not null"`
	DeviceID    string `gorm:"index;not null"`
	Response    string `gorm:"type:text"`
	Success     bool
	Error       *string `gorm:"type:text"`
	Confidence  *float64
	Suggestions string `gorm:"type:text"`
	Metadata    string `gorm:"type:text"`
}

func (responseRecord) TableName() string { return "responses" }

func (r *responseRecord) toDomain() (*types.AnalysisResponse, error) {
	resp := &types.AnalysisResponse{
		ID:         types.ResponseID(r.ID),
		Timestamp:  r.CreatedAt,
		RequestID:  types.RequestID(r.RequestID),
		DeviceID:   r.DeviceID,
		Response:   r.Response,
		Success:    r.Success,
		Error:      r.Error,
		Confidence: r.Confidence,
	}
	if r.Suggestions != "" {
		if err := json.Unmarshal([]byte(r.Suggestions), &resp.Suggestions); err != nil {
			return nil, fmt.Errorf("unmarshal suggestions: %w", err)
		}
	}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &resp.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return resp, nil
}

// ResponseStore is the sqlite-backed response collection.
type ResponseStore struct {
	db *gorm.DB
}

// NewResponseStore creates a ResponseStore on the given database handle.
func NewResponseStore(db *gorm.DB) *ResponseStore {
	return &ResponseStore{db: db}
}

// Create inserts the response. Returns ErrDuplicateResponse if a response
// for the same request_id was already written.
func (s *ResponseStore) Create(ctx context.Context, resp *types.AnalysisResponse) error {
	if resp.RequestID == "" {
		return fmt.Errorf("response: empty request_id")
	}
	if resp.ID == "" {
		resp.ID = types.NewResponseID()
	}
	if resp.Timestamp.IsZero() {
		resp.Timestamp = time.Now()
	}

	rec := responseRecord{
		ID:         string(resp.ID),
		CreatedAt:  resp.Timestamp,
		RequestID:  string(resp.RequestID),
		DeviceID:   resp.DeviceID,
		Response:   resp.Response,
		Success:    resp.Success,
		Error:      resp.Error,
		Confidence: resp.Confidence,
	}
	if len(resp.Suggestions) > 0 {
		data, err := json.Marshal(resp.Suggestions)
		if err != nil {
			return fmt.Errorf("marshal suggestions: %w", err)
		}
		rec.Suggestions = string(data)
	}
	if len(resp.Metadata) > 0 {
		data, err := json.Marshal(resp.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		rec.Metadata = string(data)
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("request %s: %w", resp.RequestID, ErrDuplicateResponse)
		}
		return fmt.Errorf("create response: %w", err)
	}
	return nil
}

// GetByRequest returns the response correlated to the given request.
func (s *ResponseStore) GetByRequest(ctx context.Context, id types.RequestID) (*types.AnalysisResponse, error) {
	var rec responseRecord
	err := s.db.WithContext(ctx).First(&rec, "request_id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("response for request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get response: %w", err)
	}
	return rec.toDomain()
}

// isUniqueViolation detects sqlite unique-constraint failures. gorm surfaces
// them as driver errors, so match on the message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}
