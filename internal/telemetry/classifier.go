package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/netpulse/internal/alert"
	"github.com/user/netpulse/internal/types"
)

const (
	classifyBatchSize = 200

	// anomalyBurstThreshold is the number of newly-anomalous samples in a
	// single sweep that triggers an operator alert.
	anomalyBurstThreshold = 5
)

// Classifier sweeps uncategorized telemetry rows and stamps each with its
// anomaly category. It is run periodically from the scheduler.
type Classifier struct {
	store  types.TelemetryStore
	alerts *alert.Registry
}

// NewClassifier creates a classifier over the given store. Alerts may be nil.
func NewClassifier(store types.TelemetryStore, alerts *alert.Registry) *Classifier {
	return &Classifier{store: store, alerts: alerts}
}

// Run categorizes one batch of uncategorized samples and returns how many
// rows it stamped. Per-row store errors are logged and skipped so one bad
// row cannot wedge the sweep. A sweep that stamps a burst of anomalies
// notifies operators.
func (c *Classifier) Run(ctx context.Context) (int, error) {
	samples, err := c.store.Uncategorized(ctx, classifyBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing uncategorized samples: %w", err)
	}

	categorized := 0
	anomalies := 0
	for _, s := range samples {
		category := Categorize(s)
		anomalous := IsAnomalous(category)
		if err := c.store.SetCategory(ctx, s.ID, category, anomalous); err != nil {
			slog.Warn("set category failed", "sample_id", string(s.ID), "error", err)
			continue
		}
		categorized++
		if anomalous {
			anomalies++
		}
	}

	if anomalies >= anomalyBurstThreshold && c.alerts != nil {
		msg := fmt.Sprintf("%d anomalous telemetry samples in one sweep (%d classified)",
			anomalies, categorized)
		if err := c.alerts.Notify(alert.TopicAnomalyBurst, msg); err != nil {
			slog.Debug("alert notify failed", "error", err)
		}
	}
	return categorized, nil
}
