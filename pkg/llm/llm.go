package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// LLMUsage holds normalized usage statistics across providers.
type LLMUsage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	ThoughtsTokens   int    `json:"thoughts_tokens,omitempty"`
	CachedTokens     int    `json:"cached_tokens,omitempty"`
	PromptDetail     string `json:"prompt_detail,omitempty"`
	CompletionDetail string `json:"completion_detail,omitempty"`
	StopReason       string `json:"stop_reason,omitempty"`
}

// LogUsage emits one structured log line with the turn's usage statistics.
func LogUsage(model string, usage *LLMUsage) {
	if usage == nil {
		return
	}
	slog.Info("📊 Usage",
		"model", model,
		"prompt", usage.PromptTokens,
		"completion", usage.CompletionTokens,
		"total", usage.TotalTokens,
		"thoughts", usage.ThoughtsTokens,
		"cached", usage.CachedTokens,
		"stop_reason", usage.StopReason,
	)
}

// LLMClient is the common interface implemented by all provider adapters.
// The engine treats the model backend as an opaque streaming call behind it.
type LLMClient interface {
	// StreamChat opens one streaming turn.
	// messages: the full conversation context (the backend itself is stateless here).
	// availableTools: provider-formatted tool declarations, or nil.
	// Returns a StreamChunk channel that is closed when the turn ends.
	StreamChat(ctx context.Context, messages []Message, availableTools any) (<-chan StreamChunk, error)

	// Provider returns the provider name ("gemini", "openai", "ollama").
	Provider() string

	// IsTransientError reports whether an error is worth retrying (503, rate limit).
	IsTransientError(err error) bool

	// SetDebug toggles raw chunk capture for this client.
	SetDebug(enabled bool)
}

// FallbackClient tries multiple clients in priority order with bounded retries.
type FallbackClient struct {
	Clients    []LLMClient
	MaxRetries int
	RetryDelay time.Duration
}

func (f *FallbackClient) StreamChat(ctx context.Context, messages []Message, availableTools any) (<-chan StreamChunk, error) {
	var lastErr error
	for i, client := range f.Clients {
		if i > 0 {
			slog.Warn("Previous provider failed, trying fallback", "provider", client.Provider(), "index", i+1)
		}

		maxRetries := f.MaxRetries
		if maxRetries <= 0 {
			maxRetries = 1
		}

		for retry := 1; retry <= maxRetries; retry++ {
			if retry > 1 {
				slog.Info("🔄 Retrying provider", "provider", client.Provider(), "attempt", fmt.Sprintf("%d/%d", retry, maxRetries))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(retry-1) * f.RetryDelay):
				}
			}

			ch, err := client.StreamChat(ctx, messages, availableTools)
			if err == nil {
				return ch, nil
			}

			lastErr = err

			if client.IsTransientError(err) && retry < maxRetries {
				slog.Warn("Provider failed with transient error, retrying", "provider", client.Provider(), "error", err)
				continue
			}

			// Non-transient, or retries exhausted: move on to the next client.
			slog.Error("Provider failed", "provider", client.Provider(), "error", err)
			break
		}
	}
	return nil, fmt.Errorf("all fallback providers failed. Last error: %v", lastErr)
}

func (f *FallbackClient) Provider() string {
	if len(f.Clients) > 0 {
		return f.Clients[0].Provider()
	}
	return "fallback"
}

// IsTransientError implements LLMClient. A FallbackClient error means every
// child already failed, so it is never worth retrying from the outside.
func (f *FallbackClient) IsTransientError(err error) bool {
	return false
}

// SetDebug propagates the debug switch to every child client.
func (f *FallbackClient) SetDebug(enabled bool) {
	for _, c := range f.Clients {
		c.SetDebug(enabled)
	}
}
