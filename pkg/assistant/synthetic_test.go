package assistant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepulse/pkg/llm"
	"pricepulse/pkg/transcript"
)

func TestSyntheticTriggerStreamsDemoDocument(t *testing.T) {
	client := &scriptedClient{}
	env := newTestEnv(t, client, nil)

	env.engine.HandleMessage(webMessage("md stream"))

	require.Eventually(t, func() bool {
		msgs := sessionTranscript(t, env)
		if len(msgs) != 2 {
			return false
		}
		tail := msgs[1]
		return !tail.Pending && tail.Content == demoMarkdown
	}, 5*time.Second, 10*time.Millisecond, "demo stream should settle on the full document")

	msgs := sessionTranscript(t, env)
	assert.Equal(t, transcript.RoleUser, msgs[0].Role)
	assert.Equal(t, "md stream", msgs[0].Content)
	assert.Equal(t, 0, client.turnCount(), "the demo never touches the model backend")
	assert.Contains(t, env.responder.allSignals(), "done")
}

func TestSyntheticZeroIntervalFallsBackToDefault(t *testing.T) {
	client := &scriptedClient{}
	env := newTestEnv(t, client, nil)
	// An explicit zero in system.json must not reach time.NewTicker.
	env.engine.sysCfg.SyntheticIntervalMs = 0
	env.engine.sysCfg.SyntheticChunkSize = 0

	env.engine.HandleMessage(webMessage("md stream"))

	require.Eventually(t, func() bool {
		msgs := sessionTranscript(t, env)
		return len(msgs) == 2 && !msgs[1].Pending && msgs[1].Content == demoMarkdown
	}, 10*time.Second, 10*time.Millisecond)
}

func TestSyntheticContentGrowsMonotonically(t *testing.T) {
	client := &scriptedClient{}
	env := newTestEnv(t, client, nil)
	env.engine.sysCfg.SyntheticIntervalMs = 5
	env.engine.sysCfg.SyntheticChunkSize = 12

	env.engine.HandleMessage(webMessage("md stream"))

	var lengths []int
	require.Eventually(t, func() bool {
		msgs := sessionTranscript(t, env)
		if len(msgs) != 2 {
			return false
		}
		tail := msgs[1]
		if tail.Role == transcript.RoleAssistant && !tail.ToolNotice {
			lengths = append(lengths, len([]rune(tail.Content)))
		}
		return !tail.Pending
	}, 10*time.Second, 2*time.Millisecond)

	// Observed prefix lengths only ever grow, in steps bounded by the
	// configured chunk size.
	require.NotEmpty(t, lengths)
	for i := 1; i < len(lengths); i++ {
		assert.GreaterOrEqual(t, lengths[i], lengths[i-1])
	}
	assert.Equal(t, len([]rune(demoMarkdown)), lengths[len(lengths)-1])
}

func TestNewSubmissionStopsSyntheticStream(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{}}
	env := newTestEnv(t, client, nil)
	// Slow ticks so the stream is guaranteed to still be running when the
	// second submission lands.
	env.engine.sysCfg.SyntheticIntervalMs = 50
	env.engine.sysCfg.SyntheticChunkSize = 8

	env.engine.HandleMessage(webMessage("md stream"))

	// Wait for at least one tick so there is partial content to keep.
	require.Eventually(t, func() bool {
		msgs := sessionTranscript(t, env)
		return len(msgs) == 2 && msgs[1].Content != placeholderAnalyzing && msgs[1].Content != ""
	}, 5*time.Second, 5*time.Millisecond)

	client.mu.Lock()
	client.turns = [][]llm.StreamChunk{textChunksTurn("Real answer.")}
	client.mu.Unlock()

	env.engine.HandleMessage(webMessage("over to the model"))

	msgs := sessionTranscript(t, env)
	require.Len(t, msgs, 4)

	partial := msgs[1]
	assert.False(t, partial.Pending, "interrupted demo text must be sealed")
	assert.Less(t, len(partial.Content), len(demoMarkdown))
	assert.Equal(t, partial.Content, demoMarkdown[:len(partial.Content)], "partial text is a prefix of the demo document")

	assert.Equal(t, "Real answer.", msgs[3].Content)

	// The stopped ticker must not keep growing the old message.
	snapshot := partial.Content
	time.Sleep(150 * time.Millisecond)
	again := sessionTranscript(t, env)[1]
	assert.Equal(t, snapshot, again.Content)
}
