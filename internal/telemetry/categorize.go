// Package telemetry classifies uploaded sensor samples into anomaly
// categories that the prompt builder can hand to the LLM as context.
package telemetry

import "github.com/user/netpulse/internal/types"

// Anomaly categories, ordered roughly by diagnostic specificity.
const (
	CategoryThermal       = "Thermal"
	CategoryMotionInduced = "Motion-Induced"
	CategoryWeakSignal    = "Weak Signal"
	CategoryUnknownIssue  = "Unknown Network Issue"
	CategorySystemLoad    = "System Load"
	CategoryNormal        = "Normal"
)

const eps = 1e-6

// Categorize applies the rule table to one sample. Rules are ordered; the
// first match wins. A sample is "network bad" when latency, loss, or jitter
// crosses its threshold, and the remaining rules attribute the degradation
// to an environmental or system cause.
func Categorize(s *types.TelemetrySample) string {
	networkBad := s.PingAvg > 100 || s.PacketLoss > 0.1 || s.PingJitter > 30
	jitterRatio := s.PingJitter / (s.PingAvg + eps)

	switch {
	case networkBad && (s.CPUTemp > 65 || s.CPULoad > 6):
		return CategoryThermal
	case networkBad && s.MotionLevel > 0:
		return CategoryMotionInduced
	case networkBad && (s.WifiStrength < -70 || s.PingJitter > 40 || jitterRatio > 0.4):
		return CategoryWeakSignal
	case (s.PingJitter > 40 || jitterRatio > 0.6) && s.CPUTemp <= 65 && s.WifiStrength >= -70:
		return CategoryUnknownIssue
	case networkBad && s.CPULoad > 8:
		return CategorySystemLoad
	default:
		return CategoryNormal
	}
}

// IsAnomalous reports whether a category marks the sample as an anomaly.
func IsAnomalous(category string) bool {
	return category != CategoryNormal && category != ""
}
