// Package anthropic implements llm.Provider for the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/user/netpulse/pkg/llm"
)

// Client implements the llm.Provider interface for Anthropic models.
type Client struct {
	client *anthropic.Client
	config *llm.Config
}

// New creates an Anthropic client with the given configuration.
func New(config *llm.Config) *Client {
	return &Client{
		client: anthropic.NewClient(config.APIKey),
		config: config,
	}
}

// Generate sends a messages request and returns the first text block of the
// response. System messages map onto the request's system field.
func (c *Client) Generate(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: c.config.MaxTokens,
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 1024
	}
	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		req.Temperature = &temp
	}

	for _, msg := range messages {
		if msg.Role == "system" {
			req.System = msg.Content
			continue
		}
		text := msg.Content
		role := anthropic.ChatRole(msg.Role)
		req.Messages = append(req.Messages, anthropic.Message{
			Role: role,
			Content: []anthropic.MessageContent{
				{Type: "text", Text: &text},
			},
		})
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("anthropic create messages: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			content = *block.Text
			break
		}
	}
	if content == "" {
		return nil, fmt.Errorf("no text content in response")
	}

	return &llm.Response{
		Content: content,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

var _ llm.Provider = (*Client)(nil)
