package llm

import "context"

// MockProvider is a test double that satisfies the Provider interface.
type MockProvider struct {
	GenerateFunc func(ctx context.Context, messages []Message) (*Response, error)
}

func (m *MockProvider) Generate(ctx context.Context, messages []Message) (*Response, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages)
	}
	return &Response{Content: "mock response"}, nil
}

var _ Provider = (*MockProvider)(nil)
