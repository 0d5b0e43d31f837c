// internal/store/telemetry.go
package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/user/netpulse/internal/types"
)

// sampleRecord is the sqlite row backing types.TelemetrySample.
type sampleRecord struct {
	ID           string `gorm:"primaryKey"`
	CreatedAt    time.Time
	DeviceID     string `gorm:"index;not null"`
	PingAvg      float64
	PingJitter   float64
	PacketLoss   float64
	WifiStrength float64
	CPUTemp      float64
	CPULoad      float64
	MotionLevel  float64
	AmbientTemp  float64
	Humidity     float64
	BytesSent    int64
	BytesRecv    int64
	IsAnomaly    bool
	Category     string `gorm:"index"`
}

func (sampleRecord) TableName() string { return "telemetry_samples" }

func (r *sampleRecord) toDomain() *types.TelemetrySample {
	return &types.TelemetrySample{
		ID:           types.SampleID(r.ID),
		Timestamp:    r.CreatedAt,
		DeviceID:     r.DeviceID,
		PingAvg:      r.PingAvg,
		PingJitter:   r.PingJitter,
		PacketLoss:   r.PacketLoss,
		WifiStrength: r.WifiStrength,
		CPUTemp:      r.CPUTemp,
		CPULoad:      r.CPULoad,
		MotionLevel:  r.MotionLevel,
		AmbientTemp:  r.AmbientTemp,
		Humidity:     r.Humidity,
		BytesSent:    r.BytesSent,
		BytesRecv:    r.BytesRecv,
		IsAnomaly:    r.IsAnomaly,
		Category:     r.Category,
	}
}

func fromDomainSample(s *types.TelemetrySample) sampleRecord {
	return sampleRecord{
		ID:           string(s.ID),
		CreatedAt:    s.Timestamp,
		DeviceID:     s.DeviceID,
		PingAvg:      s.PingAvg,
		PingJitter:   s.PingJitter,
		PacketLoss:   s.PacketLoss,
		WifiStrength: s.WifiStrength,
		CPUTemp:      s.CPUTemp,
		CPULoad:      s.CPULoad,
		MotionLevel:  s.MotionLevel,
		AmbientTemp:  s.AmbientTemp,
		Humidity:     s.Humidity,
		BytesSent:    s.BytesSent,
		BytesRecv:    s.BytesRecv,
		IsAnomaly:    s.IsAnomaly,
		Category:     s.Category,
	}
}

// TelemetryStore is the sqlite-backed telemetry collection.
type TelemetryStore struct {
	db *gorm.DB
}

// NewTelemetryStore creates a TelemetryStore on the given database handle.
func NewTelemetryStore(db *gorm.DB) *TelemetryStore {
	return &TelemetryStore{db: db}
}

// Insert stores a new sample, assigning an identifier and timestamp when unset.
func (s *TelemetryStore) Insert(ctx context.Context, sample *types.TelemetrySample) error {
	if sample.DeviceID == "" {
		return fmt.Errorf("sample: empty device_id")
	}
	if sample.ID == "" {
		sample.ID = types.NewSampleID()
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	rec := fromDomainSample(sample)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// Recent returns the latest samples for a device, newest first. An empty
// deviceID returns samples across all devices.
func (s *TelemetryStore) Recent(ctx context.Context, deviceID string, limit int) ([]*types.TelemetrySample, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	var recs []sampleRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("recent samples: %w", err)
	}
	return toDomainSamples(recs), nil
}

// RecentAnomalies returns the latest categorized anomaly samples, newest first.
func (s *TelemetryStore) RecentAnomalies(ctx context.Context, limit int) ([]*types.TelemetrySample, error) {
	var recs []sampleRecord
	err := s.db.WithContext(ctx).
		Where("is_anomaly = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("recent anomalies: %w", err)
	}
	return toDomainSamples(recs), nil
}

// Uncategorized returns samples the classifier has not labeled yet, oldest first.
func (s *TelemetryStore) Uncategorized(ctx context.Context, limit int) ([]*types.TelemetrySample, error) {
	var recs []sampleRecord
	err := s.db.WithContext(ctx).
		Where("category = ?", "").
		Order("created_at ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("uncategorized samples: %w", err)
	}
	return toDomainSamples(recs), nil
}

// SetCategory labels a sample with its anomaly category.
func (s *TelemetryStore) SetCategory(ctx context.Context, id types.SampleID, category string, isAnomaly bool) error {
	res := s.db.WithContext(ctx).
		Model(&sampleRecord{}).
		Where("id = ?", string(id)).
		Updates(map[string]any{
			"category":   category,
			"is_anomaly": isAnomaly,
		})
	if res.Error != nil {
		return fmt.Errorf("set category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("sample %s: %w", id, ErrNotFound)
	}
	return nil
}

func toDomainSamples(recs []sampleRecord) []*types.TelemetrySample {
	out := make([]*types.TelemetrySample, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain())
	}
	return out
}
