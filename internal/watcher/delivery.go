package watcher

import (
	"context"
	"time"

	"github.com/user/netpulse/internal/types"
)

// DeliveryStatus represents the lifecycle state of a Delivery.
type DeliveryStatus string

const (
	DeliveryQueued   DeliveryStatus = "queued"
	DeliveryRunning  DeliveryStatus = "running"
	DeliveryComplete DeliveryStatus = "complete"
	DeliveryFailed   DeliveryStatus = "failed"
)

// Delivery is one observation of a pending request handed to the handler.
// The same request may be delivered more than once (poll overlap, restart);
// the handler's claim decides which delivery does the work.
type Delivery struct {
	RequestID types.RequestID
	DeviceID  string
	Request   *types.AnalysisRequest
	Status    DeliveryStatus
	CreatedAt time.Time

	Ctx context.Context
}

// NewDelivery wraps a pending request for dispatch.
func NewDelivery(req *types.AnalysisRequest) *Delivery {
	return &Delivery{
		RequestID: req.ID,
		DeviceID:  req.DeviceID,
		Request:   req,
		Status:    DeliveryQueued,
		CreatedAt: time.Now(),
	}
}
