// Package alert routes operator notifications (failed requests, anomaly
// bursts) to whichever notifiers are configured. Alerts are best-effort;
// a notifier error never affects request processing.
package alert

import (
	"fmt"
	"strings"
	"sync"
)

// Notifier sends one alert message for a topic.
type Notifier func(topic, message string) error

// Topics used by the worker.
const (
	TopicRequestFailed = "request.failed"
	TopicStaleRequests = "request.stale"
	TopicAnomalyBurst  = "telemetry.anomaly_burst"
)

// Registry routes alerts to notifiers by topic prefix (e.g. "request.",
// "telemetry.").
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

// NewRegistry creates an empty alert registry.
func NewRegistry() *Registry {
	return &Registry{
		notifiers: make(map[string]Notifier),
	}
}

// Register adds a notifier for topics starting with prefix. Registering the
// empty prefix catches everything.
func (r *Registry) Register(prefix string, notifier Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers[prefix] = notifier
}

// Notify finds the notifier matching the topic prefix and calls it.
// Returns an error if no notifier is registered for the topic.
func (r *Registry) Notify(topic, message string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, notifier := range r.notifiers {
		if strings.HasPrefix(topic, prefix) {
			return notifier(topic, message)
		}
	}
	return fmt.Errorf("no notifier for topic: %s", topic)
}
