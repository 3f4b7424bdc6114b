package llm

import (
	"context"
	"sync"
)

// MockClient is a test double for the LLM Client interface.
type MockClient struct {
	Response *Response
	Err      error

	mu    sync.Mutex
	Calls []Request // records requests sent
}

// Complete records the call and returns the mock response.
func (m *MockClient) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	return m.Response, m.Err
}

// CallCount returns how many requests were recorded.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
