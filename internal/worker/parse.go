package worker

import (
	"encoding/json"
	"strings"
)

// structuredTail is the optional JSON object models are asked to append to
// their reply.
type structuredTail struct {
	Confidence  *float64 `json:"confidence"`
	Suggestions []string `json:"suggestions"`
}

// parseStructured splits a model reply into its prose body and the optional
// trailing JSON object carrying confidence and suggestions. Replies without
// a parseable tail are returned whole; a confidence outside [0,1] is
// discarded as noise.
func parseStructured(content string) (string, *float64, []string) {
	trimmed := strings.TrimRight(content, " \n\t`")
	start := strings.LastIndex(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return content, nil, nil
	}

	var tail structuredTail
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &tail); err != nil {
		return content, nil, nil
	}
	if tail.Confidence == nil && len(tail.Suggestions) == 0 {
		return content, nil, nil
	}
	if tail.Confidence != nil && (*tail.Confidence < 0 || *tail.Confidence > 1) {
		tail.Confidence = nil
	}

	body := strings.TrimSpace(strings.TrimRight(trimmed[:start], " \n\t`"))
	if body == "" {
		body = content
	}
	return body, tail.Confidence, tail.Suggestions
}
