// internal/alert/registry_test.go
package alert

import (
	"strings"
	"testing"
)

func TestRegistryNotify(t *testing.T) {
	reg := NewRegistry()

	var gotTopic, gotMsg string
	reg.Register("request.", func(topic, message string) error {
		gotTopic = topic
		gotMsg = message
		return nil
	})

	err := reg.Notify(TopicRequestFailed, "request req-1 failed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTopic != TopicRequestFailed {
		t.Errorf("expected topic %q, got %q", TopicRequestFailed, gotTopic)
	}
	if gotMsg != "request req-1 failed" {
		t.Errorf("unexpected message %q", gotMsg)
	}
}

func TestRegistryNoNotifier(t *testing.T) {
	reg := NewRegistry()

	err := reg.Notify("unknown.topic", "hello")
	if err == nil {
		t.Fatal("expected error for unregistered topic, got nil")
	}
}

func TestRegistryMultiplePrefixes(t *testing.T) {
	reg := NewRegistry()

	var requestCalls, telemetryCalls int
	reg.Register("request.", func(topic, message string) error {
		requestCalls++
		return nil
	})
	reg.Register("telemetry.", func(topic, message string) error {
		telemetryCalls++
		return nil
	})

	if err := reg.Notify(TopicRequestFailed, "msg1"); err != nil {
		t.Fatalf("request notify error: %v", err)
	}
	if err := reg.Notify(TopicAnomalyBurst, "msg2"); err != nil {
		t.Fatalf("telemetry notify error: %v", err)
	}

	if requestCalls != 1 {
		t.Errorf("expected 1 request call, got %d", requestCalls)
	}
	if telemetryCalls != 1 {
		t.Errorf("expected 1 telemetry call, got %d", telemetryCalls)
	}
}

func TestSplitMessage(t *testing.T) {
	short := "hello"
	if parts := splitMessage(short); len(parts) != 1 || parts[0] != short {
		t.Errorf("short message should not be split, got %v", parts)
	}

	long := strings.Repeat("x", maxTelegramMessage*2+10)
	parts := splitMessage(long)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	var total int
	for _, p := range parts {
		if len(p) > maxTelegramMessage {
			t.Errorf("part exceeds limit: %d", len(p))
		}
		total += len(p)
	}
	if total != len(long) {
		t.Errorf("split lost characters: %d != %d", total, len(long))
	}
}
