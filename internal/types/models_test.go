// internal/types/models_test.go
package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to RequestStatus
		ok       bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusFailed, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusPending, false},
		{StatusFailed, StatusProcessing, false},
		{StatusProcessing, StatusPending, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Errorf("%s -> %s: expected %v, got %v", c.from, c.to, c.ok, got)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
	if StatusPending.Terminal() || StatusProcessing.Terminal() {
		t.Error("pending and processing must not be terminal")
	}
}

func TestValidRequestType(t *testing.T) {
	for _, rt := range []RequestType{TypeGeneralQuery, TypeAnalyzeAnomaly, TypeSuggestHealing, TypeAnalyzeCorrelations} {
		if !ValidRequestType(rt) {
			t.Errorf("expected %s to be valid", rt)
		}
	}
	if ValidRequestType("reboot_router") {
		t.Error("expected unknown type to be invalid")
	}
}

func TestRequestValidate(t *testing.T) {
	req := &AnalysisRequest{
		ID:          NewRequestID(),
		RequestType: TypeGeneralQuery,
		DeviceID:    "iphone_app",
		Prompt:      "Say hi",
	}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}

	missing := *req
	missing.Prompt = ""
	if err := missing.Validate(); err == nil {
		t.Error("expected error for empty prompt")
	}

	badType := *req
	badType.RequestType = "mystery"
	if err := badType.Validate(); err == nil {
		t.Error("expected error for unknown request type")
	}
}

func TestResponseSerialization(t *testing.T) {
	errMsg := "upstream timeout"
	resp := AnalysisResponse{
		ID:        NewResponseID(),
		Timestamp: time.Now(),
		RequestID: "abc123xyz",
		DeviceID:  "iphone_app",
		Response:  "",
		Success:   false,
		Error:     &errMsg,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["request_id"] != "abc123xyz" {
		t.Errorf("expected request_id abc123xyz, got %v", decoded["request_id"])
	}
	if decoded["error"] != "upstream timeout" {
		t.Errorf("expected error string, got %v", decoded["error"])
	}

	// error key must serialize as explicit null on success
	resp.Success = true
	resp.Error = nil
	data, _ = json.Marshal(resp)
	decoded = nil
	json.Unmarshal(data, &decoded)
	if v, ok := decoded["error"]; !ok || v != nil {
		t.Errorf("expected error to be present and null, got %v (present=%v)", v, ok)
	}
}
