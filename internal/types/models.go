package types

import (
	"fmt"
	"time"
)

// RequestType classifies what kind of analysis the producer is asking for.
type RequestType string

const (
	TypeGeneralQuery        RequestType = "general_query"
	TypeAnalyzeAnomaly      RequestType = "analyze_anomaly"
	TypeSuggestHealing      RequestType = "suggest_healing"
	TypeAnalyzeCorrelations RequestType = "analyze_correlations"
)

// ValidRequestType reports whether t is one of the known request types.
func ValidRequestType(t RequestType) bool {
	switch t {
	case TypeGeneralQuery, TypeAnalyzeAnomaly, TypeSuggestHealing, TypeAnalyzeCorrelations:
		return true
	}
	return false
}

// RequestStatus is the lifecycle state of an analysis request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusProcessing RequestStatus = "processing"
	StatusCompleted  RequestStatus = "completed"
	StatusFailed     RequestStatus = "failed"
)

// CanTransition reports whether the status machine allows moving from s to
// next. Completed and failed are terminal.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Terminal reports whether no transition leaves this status.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AnalysisRequest is a producer-created record asking the worker for an AI
// analysis. The worker owns the status field after pickup.
type AnalysisRequest struct {
	ID           RequestID     `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	RequestType  RequestType   `json:"request_type"`
	Status       RequestStatus `json:"status"`
	DeviceID     string        `json:"device_id"`
	Prompt       string        `json:"prompt"`
	ExpiresAt    time.Time     `json:"expires_at"`
	RetryCount   int           `json:"retry_count"`
	ProcessingAt *time.Time    `json:"processing_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Validate checks the fields a producer must supply.
func (r *AnalysisRequest) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("request %s: empty prompt", r.ID)
	}
	if r.DeviceID == "" {
		return fmt.Errorf("request %s: empty device_id", r.ID)
	}
	if !ValidRequestType(r.RequestType) {
		return fmt.Errorf("request %s: unknown request_type %q", r.ID, r.RequestType)
	}
	return nil
}

// AnalysisResponse is the worker-created result record, correlated to its
// request by RequestID. Exactly one response exists per processed request.
type AnalysisResponse struct {
	ID          ResponseID        `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	RequestID   RequestID         `json:"request_id"`
	DeviceID    string            `json:"device_id"`
	Response    string            `json:"response"`
	Success     bool              `json:"success"`
	Error       *string           `json:"error"`
	Confidence  *float64          `json:"confidence,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// TelemetrySample is one row of network/sensor metrics uploaded by an edge
// probe. Category is empty until the classifier has seen the row.
type TelemetrySample struct {
	ID           SampleID  `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	DeviceID     string    `json:"device_id"`
	PingAvg      float64   `json:"ping_avg"`
	PingJitter   float64   `json:"ping_jitter"`
	PacketLoss   float64   `json:"packet_loss"`
	WifiStrength float64   `json:"wifi_strength"`
	CPUTemp      float64   `json:"cpu_temp"`
	CPULoad      float64   `json:"cpu_load"`
	MotionLevel  float64   `json:"motion_level"`
	AmbientTemp  float64   `json:"ambient_temp"`
	Humidity     float64   `json:"humidity"`
	BytesSent    int64     `json:"bytes_sent"`
	BytesRecv    int64     `json:"bytes_recv"`
	IsAnomaly    bool      `json:"is_anomaly"`
	Category     string    `json:"category,omitempty"`
}
