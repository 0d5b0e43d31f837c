// Package gemini implements llm.Provider on top of the Google GenAI SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/user/netpulse/pkg/llm"
)

// Client implements the llm.Provider interface for the Gemini API.
type Client struct {
	client *genai.Client
	config *llm.Config
}

// New creates a Gemini client authenticated with the configured API key.
func New(ctx context.Context, config *llm.Config) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Client{client: client, config: config}, nil
}

// Generate sends the conversation as a single prompt and returns the response.
// System messages become a system instruction; the remaining messages are
// joined in order, which is sufficient for single-turn analysis prompts.
func (c *Client) Generate(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	var system string
	var parts []string
	for _, msg := range messages {
		if msg.Role == "system" {
			system = msg.Content
			continue
		}
		parts = append(parts, msg.Content)
	}
	prompt := strings.Join(parts, "\n\n")

	genConfig := &genai.GenerateContentConfig{}
	if system != "" {
		genConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if c.config.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		genConfig.Temperature = &temp
	}

	result, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(prompt), genConfig)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil ||
		len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	resp := &llm.Response{
		Content: result.Candidates[0].Content.Parts[0].Text,
	}
	if result.UsageMetadata != nil {
		resp.Usage = llm.Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(result.UsageMetadata.TotalTokenCount),
		}
	}
	return resp, nil
}

var _ llm.Provider = (*Client)(nil)
