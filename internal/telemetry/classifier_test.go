package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/user/netpulse/internal/alert"
	"github.com/user/netpulse/internal/types"
)

type fakeTelemetryStore struct {
	samples    []*types.TelemetrySample
	categories map[types.SampleID]string
	failOn     types.SampleID
}

func newFakeTelemetryStore(samples ...*types.TelemetrySample) *fakeTelemetryStore {
	return &fakeTelemetryStore{
		samples:    samples,
		categories: make(map[types.SampleID]string),
	}
}

func (s *fakeTelemetryStore) Insert(ctx context.Context, sample *types.TelemetrySample) error {
	s.samples = append(s.samples, sample)
	return nil
}

func (s *fakeTelemetryStore) Recent(ctx context.Context, deviceID string, limit int) ([]*types.TelemetrySample, error) {
	return s.samples, nil
}

func (s *fakeTelemetryStore) RecentAnomalies(ctx context.Context, limit int) ([]*types.TelemetrySample, error) {
	return nil, nil
}

func (s *fakeTelemetryStore) Uncategorized(ctx context.Context, limit int) ([]*types.TelemetrySample, error) {
	var out []*types.TelemetrySample
	for _, sample := range s.samples {
		if _, done := s.categories[sample.ID]; !done {
			out = append(out, sample)
		}
	}
	return out, nil
}

func (s *fakeTelemetryStore) SetCategory(ctx context.Context, id types.SampleID, category string, isAnomaly bool) error {
	if id == s.failOn {
		return errors.New("row locked")
	}
	s.categories[id] = category
	return nil
}

func TestClassifierRun(t *testing.T) {
	store := newFakeTelemetryStore(
		&types.TelemetrySample{ID: "s1", PingAvg: 20, PingJitter: 5, WifiStrength: -50, CPUTemp: 45},
		&types.TelemetrySample{ID: "s2", PingAvg: 150, PingJitter: 10, WifiStrength: -50, CPUTemp: 70},
	)

	n, err := NewClassifier(store, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 categorized, got %d", n)
	}
	if store.categories["s1"] != CategoryNormal {
		t.Errorf("expected s1 Normal, got %q", store.categories["s1"])
	}
	if store.categories["s2"] != CategoryThermal {
		t.Errorf("expected s2 Thermal, got %q", store.categories["s2"])
	}
}

func TestClassifierSkipsFailedRows(t *testing.T) {
	store := newFakeTelemetryStore(
		&types.TelemetrySample{ID: "s1"},
		&types.TelemetrySample{ID: "s2"},
	)
	store.failOn = "s1"

	n, err := NewClassifier(store, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 categorized despite failure, got %d", n)
	}
	if _, ok := store.categories["s2"]; !ok {
		t.Error("s2 should still have been categorized")
	}
}

func TestClassifierAnomalyBurstAlert(t *testing.T) {
	var samples []*types.TelemetrySample
	for i := 0; i < anomalyBurstThreshold; i++ {
		samples = append(samples, &types.TelemetrySample{
			ID:      types.SampleID(fmt.Sprintf("s%d", i)),
			PingAvg: 150, CPUTemp: 70,
		})
	}
	store := newFakeTelemetryStore(samples...)

	alerts := alert.NewRegistry()
	var topic, message string
	alerts.Register("telemetry.", func(tp, msg string) error {
		topic, message = tp, msg
		return nil
	})

	if _, err := NewClassifier(store, alerts).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if topic != alert.TopicAnomalyBurst {
		t.Errorf("expected anomaly burst alert, got topic %q", topic)
	}
	if message == "" {
		t.Error("expected alert message")
	}
}

func TestClassifierNoAlertBelowThreshold(t *testing.T) {
	store := newFakeTelemetryStore(
		&types.TelemetrySample{ID: "s1", PingAvg: 150, CPUTemp: 70},
	)

	alerts := alert.NewRegistry()
	var fired bool
	alerts.Register("", func(tp, msg string) error {
		fired = true
		return nil
	})

	if _, err := NewClassifier(store, alerts).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fired {
		t.Error("one anomaly must not fire a burst alert")
	}
}
