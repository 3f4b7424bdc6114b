package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama calls a local Ollama instance.
type Ollama struct {
	url    string
	model  string
	client *http.Client
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewOllama creates a new Ollama client.
func NewOllama(url, model string, timeout time.Duration) *Ollama {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Ollama{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

// Complete sends the conversation to Ollama's chat endpoint.
func (o *Ollama) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]ollamaMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, t := range req.History {
		messages = append(messages, ollamaMessage{Role: t.Role, Content: t.Text})
	}
	messages = append(messages, ollamaMessage{Role: RoleUser, Content: req.Prompt})

	options := map[string]any{"num_predict": 1024}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	reqBody := map[string]any{
		"model":    o.model,
		"messages": messages,
		"stream":   false,
		"options":  options,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.url+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama api status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Message         ollamaMessage `json:"message"`
		PromptEvalCount int           `json:"prompt_eval_count"`
		EvalCount       int           `json:"eval_count"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &Response{
		Content:    result.Message.Content,
		Provider:   "ollama",
		TokensUsed: result.PromptEvalCount + result.EvalCount,
	}, nil
}
