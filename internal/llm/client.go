package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/lazypower/muza/internal/config"
)

// ErrNotConfigured is returned by NewClient when no remote provider is set.
// Callers fall back to the local graph.
var ErrNotConfigured = errors.New("llm: no provider configured")

// Roles used in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client is the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Turn is one message of prior conversation.
type Turn struct {
	Role string
	Text string
}

// Request is a single completion call.
type Request struct {
	System      string
	History     []Turn
	Prompt      string
	Temperature float64
}

// Response holds the result of an LLM completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// NewClient creates an LLM client based on the config provider setting.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "", "local":
		return nil, ErrNotConfigured
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("gemini provider requires GEMINI_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "gemini-2.0-flash"
		}
		g, err := NewGemini(ctx, cfg.GeminiKey, model)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return NewAnthropic(cfg.AnthropicKey, model), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama(url, model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
