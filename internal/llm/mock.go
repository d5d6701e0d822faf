package llm

import (
	"context"

	"treechat/internal/domain"
)

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response string
	Summary  string
	Err      error

	SummarizedCount int
	LastMessages    []domain.Message
	LastPrompt      string
}

func (m *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.LastPrompt = prompt
	return m.Response, m.Err
}

func (m *MockClient) Summarize(ctx context.Context, messages []domain.Message) (string, error) {
	m.SummarizedCount++
	m.LastMessages = messages
	return m.Summary, m.Err
}
