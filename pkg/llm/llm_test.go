package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	name      string
	errs      []error
	transient bool
	calls     int
	debug     bool
}

func (s *stubClient) StreamChat(ctx context.Context, messages []Message, availableTools any) (<-chan StreamChunk, error) {
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return nil, s.errs[s.calls-1]
	}
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{IsFinal: true, FinishReason: "stop"}
	close(ch)
	return ch, nil
}

func (s *stubClient) Provider() string                { return s.name }
func (s *stubClient) IsTransientError(err error) bool { return s.transient }
func (s *stubClient) SetDebug(enabled bool)           { s.debug = enabled }

func TestFallbackFirstClientSucceeds(t *testing.T) {
	primary := &stubClient{name: "gemini"}
	backup := &stubClient{name: "openai"}
	f := &FallbackClient{Clients: []LLMClient{primary, backup}, MaxRetries: 3}

	ch, err := f.StreamChat(context.Background(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, backup.calls)
}

func TestFallbackRetriesTransientThenSucceeds(t *testing.T) {
	primary := &stubClient{
		name:      "gemini",
		errs:      []error{errors.New("503 overloaded"), errors.New("503 overloaded")},
		transient: true,
	}
	f := &FallbackClient{Clients: []LLMClient{primary}, MaxRetries: 3, RetryDelay: time.Millisecond}

	_, err := f.StreamChat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, primary.calls)
}

func TestFallbackSkipsToNextClientOnHardError(t *testing.T) {
	primary := &stubClient{name: "gemini", errs: []error{errors.New("401 invalid key")}}
	backup := &stubClient{name: "ollama"}
	f := &FallbackClient{Clients: []LLMClient{primary, backup}, MaxRetries: 3}

	_, err := f.StreamChat(context.Background(), nil, nil)
	require.NoError(t, err)
	// Hard errors skip remaining retries on the failing client.
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestFallbackAllClientsFail(t *testing.T) {
	primary := &stubClient{name: "gemini", errs: []error{errors.New("boom")}}
	backup := &stubClient{name: "openai", errs: []error{errors.New("also boom")}}
	f := &FallbackClient{Clients: []LLMClient{primary, backup}, MaxRetries: 1}

	_, err := f.StreamChat(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "also boom")
}

func TestFallbackHonorsContextCancelBetweenRetries(t *testing.T) {
	primary := &stubClient{
		name:      "gemini",
		errs:      []error{errors.New("503"), errors.New("503"), errors.New("503")},
		transient: true,
	}
	f := &FallbackClient{Clients: []LLMClient{primary}, MaxRetries: 3, RetryDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.StreamChat(ctx, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, primary.calls)
}

func TestFallbackSetDebugPropagates(t *testing.T) {
	a := &stubClient{name: "gemini"}
	b := &stubClient{name: "openai"}
	f := &FallbackClient{Clients: []LLMClient{a, b}}

	f.SetDebug(true)
	assert.True(t, a.debug)
	assert.True(t, b.debug)
}

func TestFallbackProviderName(t *testing.T) {
	f := &FallbackClient{Clients: []LLMClient{&stubClient{name: "ollama"}}}
	assert.Equal(t, "ollama", f.Provider())
	assert.Equal(t, "fallback", (&FallbackClient{}).Provider())
}
