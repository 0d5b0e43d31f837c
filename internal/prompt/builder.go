// Package prompt assembles token-budgeted LLM prompts for analysis requests.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/netpulse/internal/types"
	"github.com/user/netpulse/pkg/llm"
)

// Builder assembles token-budgeted prompts for the LLM.
type Builder struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// New creates a prompt builder with the specified token budget.
// model is used to select the appropriate tokenizer (e.g. "gpt-4").
// maxTokens is the model's context window size.
// reserve is the number of tokens to reserve for the model's response.
func New(model string, maxTokens, reserve int) (*Builder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Builder{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

// countTokens returns the token count for a string.
func (b *Builder) countTokens(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

// Build assembles the message list for a request: a per-type system prompt,
// a telemetry context section trimmed to budget, then the user's prompt.
// samples should be most-recent-first; older samples are dropped first when
// the budget runs out.
func (b *Builder) Build(req *types.AnalysisRequest, samples []*types.TelemetrySample) ([]llm.Message, error) {
	inputBudget := b.maxTokens - b.reserve

	sysPrompt := systemPrompt(req.RequestType)
	userPrompt := req.Prompt
	remaining := inputBudget - b.countTokens(sysPrompt) - b.countTokens(userPrompt)
	if remaining < 0 {
		return nil, fmt.Errorf("prompt exceeds token budget (%d tokens over)", -remaining)
	}

	// 70% of what is left goes to telemetry context, the rest is margin.
	telemetryBudget := int(float64(remaining) * 0.7)

	var lines []string
	usedTokens := 0
	for _, s := range samples {
		line := sampleLine(s)
		lineTokens := b.countTokens(line)
		if usedTokens+lineTokens > telemetryBudget {
			break
		}
		lines = append(lines, line)
		usedTokens += lineTokens
	}

	content := userPrompt
	if len(lines) > 0 {
		content = "Recent telemetry (most recent first):\n" +
			strings.Join(lines, "\n") +
			"\n\n" + userPrompt
	}

	return []llm.Message{
		{Role: "system", Content: sysPrompt},
		{Role: "user", Content: content},
	}, nil
}

// sampleLine renders one telemetry sample as a compact single line.
func sampleLine(s *types.TelemetrySample) string {
	line := fmt.Sprintf(
		"[%s] device=%s ping_avg=%.1fms jitter=%.1fms loss=%.2f wifi=%.0fdBm cpu_temp=%.1fC cpu_load=%.1f motion=%.0f",
		s.Timestamp.Format(time.RFC3339), s.DeviceID,
		s.PingAvg, s.PingJitter, s.PacketLoss, s.WifiStrength,
		s.CPUTemp, s.CPULoad, s.MotionLevel,
	)
	if s.IsAnomaly {
		line += " anomaly=" + s.Category
	}
	return line
}

const structuredOutputNote = `

End your reply with a single JSON object on its own line of the form
{"confidence": <0.0-1.0>, "suggestions": ["...", "..."]} summarizing how
confident you are and any recommended actions. Omit the object if you have
no recommendation.`

func systemPrompt(rt types.RequestType) string {
	base := fmt.Sprintf(
		"You are the analysis engine of a home-network monitoring system. "+
			"You receive telemetry from small network sensor devices (ping latency, "+
			"jitter, packet loss, Wi-Fi signal, CPU temperature and load, motion). "+
			"Current time: %s. Be concise and concrete; refer to the telemetry "+
			"you were given rather than speculating.",
		time.Now().Format(time.RFC3339),
	)

	switch rt {
	case types.TypeAnalyzeAnomaly:
		return base + " The user is asking about a detected anomaly. Explain the " +
			"most likely root cause given the telemetry, distinguishing environmental " +
			"causes (heat, motion, weak signal) from network-side causes." + structuredOutputNote
	case types.TypeSuggestHealing:
		return base + " Propose remediation steps for the current condition, ordered " +
			"by likely impact. Only suggest actions a home user or the device itself " +
			"could take (reposition device, change channel, reduce load, power cycle)." + structuredOutputNote
	case types.TypeAnalyzeCorrelations:
		return base + " Look for correlations across the telemetry series: metrics " +
			"that move together, lead/lag patterns, and shared environmental causes." + structuredOutputNote
	default:
		return base
	}
}
