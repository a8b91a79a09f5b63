package assistant

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepulse/pkg/api"
	"pricepulse/pkg/config"
	"pricepulse/pkg/dashboard"
	"pricepulse/pkg/llm"
	"pricepulse/pkg/tools"
	"pricepulse/pkg/transcript"
)

// scriptedClient plays back canned chunk sequences, one per StreamChat call.
// When the script runs out, the last turn repeats.
type scriptedClient struct {
	mu       sync.Mutex
	turns    [][]llm.StreamChunk
	idx      int
	received [][]llm.Message
	tools    []any
	err      error
}

func (c *scriptedClient) StreamChat(ctx context.Context, messages []llm.Message, availableTools any) (<-chan llm.StreamChunk, error) {
	c.mu.Lock()
	snapshot := make([]llm.Message, len(messages))
	copy(snapshot, messages)
	c.received = append(c.received, snapshot)
	c.tools = append(c.tools, availableTools)
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	var script []llm.StreamChunk
	if c.idx < len(c.turns) {
		script = c.turns[c.idx]
		c.idx++
	} else if len(c.turns) > 0 {
		script = c.turns[len(c.turns)-1]
	}
	c.mu.Unlock()

	ch := make(chan llm.StreamChunk, len(script)+1)
	for _, chunk := range script {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func (c *scriptedClient) Provider() string { return "scripted" }
func (c *scriptedClient) IsTransientError(error) bool { return false }
func (c *scriptedClient) SetDebug(bool) {}

func (c *scriptedClient) turnCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func (c *scriptedClient) receivedAt(i int) []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received[i]
}

// fakeResponder records everything the engine pushes toward the widget.
type fakeResponder struct {
	mu       sync.Mutex
	replies  []string
	signals  []string
	streamed []string
}

func (r *fakeResponder) SendReply(_ api.SessionContext, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, content)
	return nil
}

func (r *fakeResponder) SendSignal(_ api.SessionContext, signal string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, signal)
	return nil
}

func (r *fakeResponder) StreamReply(_ api.SessionContext, blocks <-chan llm.ContentBlock) error {
	var b strings.Builder
	for block := range blocks {
		if block.Type == llm.BlockTypeText {
			b.WriteString(block.Text)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streamed = append(r.streamed, b.String())
	return nil
}

func (r *fakeResponder) allReplies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.replies...)
}

func (r *fakeResponder) allSignals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.signals...)
}

type testEnv struct {
	engine    *Engine
	responder *fakeResponder
	state     *dashboard.State
	sessions  *transcript.SessionManager
}

func newTestEnv(t *testing.T, client llm.LLMClient, catalog *dashboard.Catalog) *testEnv {
	t.Helper()

	cfg := &config.Config{SystemPrompt: "You are the PricePulse pricing assistant."}
	sysCfg := config.DefaultSystemConfig()
	sysCfg.ThinkingInitDelayMs = 60000 // keep the thinking signal out of assertions
	sysCfg.SyntheticIntervalMs = 1
	sysCfg.SyntheticChunkSize = 64

	if catalog == nil {
		catalog = dashboard.NewCatalog(nil)
	}

	state := dashboard.NewState()
	sessions := transcript.NewSessionManager(t.TempDir())
	engine := NewEngine(client, cfg, sysCfg, sessions, state, catalog)
	engine.RegisterTool(
		tools.NewFiltersTool(state),
		tools.NewDelegateTool(state),
	)

	responder := &fakeResponder{}
	engine.SetResponder(responder)

	return &testEnv{engine: engine, responder: responder, state: state, sessions: sessions}
}

func webMessage(text string) *api.UnifiedMessage {
	return &api.UnifiedMessage{
		Session: api.SessionContext{ChannelID: "web", UserID: "u1", ChatID: "global", Username: "Tester"},
		Content: text,
	}
}

func sessionTranscript(t *testing.T, env *testEnv) []transcript.Message {
	t.Helper()
	tr, err := env.engine.Transcript("web_global")
	require.NoError(t, err)
	return tr.Messages()
}

func textChunksTurn(texts ...string) []llm.StreamChunk {
	var out []llm.StreamChunk
	for _, tx := range texts {
		out = append(out, llm.NewTextChunk(tx))
	}
	out = append(out, llm.NewFinalChunk(llm.StopReasonStop, &llm.LLMUsage{TotalTokens: 10}))
	return out
}

func toolCallTurn(name, args string) []llm.StreamChunk {
	return []llm.StreamChunk{
		{ToolCalls: []llm.ToolCall{{
			ID:       "call_1",
			Name:     name,
			Function: llm.FunctionCall{Name: name, Arguments: args},
		}}},
		llm.NewFinalChunk(llm.StopReasonStop, nil),
	}
}

func TestPlainAnswerSettles(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		textChunksTurn("Momo undercuts ", "you on 12 products."),
	}}
	env := newTestEnv(t, client, nil)

	env.engine.HandleMessage(webMessage("how is momo pricing today"))

	msgs := sessionTranscript(t, env)
	require.Len(t, msgs, 2)
	assert.Equal(t, transcript.RoleUser, msgs[0].Role)
	assert.Equal(t, "Momo undercuts you on 12 products.", msgs[1].Content)
	assert.False(t, msgs[1].Pending)
	assert.Contains(t, env.responder.allSignals(), "done")

	// The model context starts with the configured system prompt.
	first := client.receivedAt(0)
	require.NotEmpty(t, first)
	assert.Equal(t, llm.RoleSystem, first[0].Role)
}

func TestToolOnlyTurnResolvesPlaceholderWithSingleNotice(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		toolCallTurn("update_filters", `{"platform":"momo"}`),
		textChunksTurn("Filtered the board to Momo."),
	}}
	env := newTestEnv(t, client, nil)

	var navigations []string
	env.state.SetNavigationHook(func(view string) { navigations = append(navigations, view) })

	env.engine.HandleMessage(webMessage("show me only momo"))

	msgs := sessionTranscript(t, env)
	require.Len(t, msgs, 3)
	assert.Equal(t, transcript.RoleUser, msgs[0].Role)
	assert.True(t, msgs[1].ToolNotice, "tool notice should replace the placeholder")
	assert.Contains(t, msgs[1].Content, "Updated dashboard filters")
	assert.Equal(t, "Filtered the board to Momo.", msgs[2].Content)

	for _, m := range msgs {
		assert.False(t, m.Pending, "no placeholder may survive a settled turn")
	}

	assert.Equal(t, "momo", env.state.CurrentFilters().Platform)
	assert.Equal(t, []string{dashboard.ViewAnalysis}, navigations)

	// The continuation turn sees the assistant's call and the tool result.
	second := client.receivedAt(1)
	var sawToolResult bool
	for _, m := range second {
		if m.Role == llm.RoleTool {
			sawToolResult = true
		}
	}
	assert.True(t, sawToolResult)
}

func TestProseStreamedBeforeToolCallSurvivesDispatch(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		{
			llm.NewTextChunk("Let me narrow the board to Momo first."),
			{ToolCalls: []llm.ToolCall{{
				ID:       "call_1",
				Name:     "update_filters",
				Function: llm.FunctionCall{Name: "update_filters", Arguments: `{"platform":"momo"}`},
			}}},
			llm.NewFinalChunk(llm.StopReasonStop, nil),
		},
		textChunksTurn("Done, the board shows Momo only."),
	}}
	env := newTestEnv(t, client, nil)

	env.engine.HandleMessage(webMessage("show me only momo"))

	msgs := sessionTranscript(t, env)
	require.Len(t, msgs, 4)
	assert.Equal(t, transcript.RoleUser, msgs[0].Role)
	assert.Equal(t, "Let me narrow the board to Momo first.", msgs[1].Content,
		"streamed prose must stay in the transcript after dispatch")
	assert.False(t, msgs[1].Pending)
	assert.False(t, msgs[1].ToolNotice)
	assert.True(t, msgs[2].ToolNotice)
	assert.Contains(t, msgs[2].Content, "Updated dashboard filters")
	assert.Equal(t, "Done, the board shows Momo only.", msgs[3].Content)

	for _, m := range msgs {
		assert.False(t, m.Pending, "no placeholder may survive a settled turn")
	}
}

func TestHopLimitProducesStuckMessage(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		toolCallTurn("update_filters", `{"platform":"momo"}`),
	}}
	env := newTestEnv(t, client, nil)

	env.engine.HandleMessage(webMessage("loop forever"))

	msgs := sessionTranscript(t, env)
	require.NotEmpty(t, msgs)
	tail := msgs[len(msgs)-1]
	assert.Equal(t, stuckText, tail.Content)
	assert.False(t, tail.Pending)
	assert.NotEqual(t, apologyText, tail.Content, "hop exhaustion must be distinguishable from generic failure")
}

func TestStreamFailureReplacesPlaceholderWithApology(t *testing.T) {
	client := &scriptedClient{err: context.DeadlineExceeded}
	env := newTestEnv(t, client, nil)

	env.engine.HandleMessage(webMessage("anything"))

	msgs := sessionTranscript(t, env)
	require.Len(t, msgs, 2)
	assert.Equal(t, apologyText, msgs[1].Content)
	assert.False(t, msgs[1].Pending)
	assert.Contains(t, env.responder.allReplies(), apologyText)
}

func TestUnknownToolFeedsErrorBackWithoutNotice(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		toolCallTurn("bogus_tool", `{}`),
		textChunksTurn("Never mind, answering directly."),
	}}
	env := newTestEnv(t, client, nil)

	env.engine.HandleMessage(webMessage("do the impossible"))

	msgs := sessionTranscript(t, env)
	for _, m := range msgs {
		assert.False(t, m.ToolNotice, "an unexecuted call must not leave a notice")
	}

	second := client.receivedAt(1)
	var errorResult string
	for _, m := range second {
		if m.Role == llm.RoleTool {
			errorResult = m.GetTextContent()
		}
	}
	assert.Contains(t, errorResult, "unknown tool")
}

func TestNoToolsCommandSuppressesDeclarations(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		textChunksTurn("Plain answer."),
	}}
	env := newTestEnv(t, client, nil)

	env.engine.HandleMessage(webMessage("/notools what moves prices"))

	require.Equal(t, 1, client.turnCount())
	assert.Nil(t, client.tools[0])

	msgs := sessionTranscript(t, env)
	require.Len(t, msgs, 2)
	assert.Equal(t, "what moves prices", msgs[0].Content)
}

func TestResetCommandClearsSession(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		textChunksTurn("First answer."),
	}}
	env := newTestEnv(t, client, nil)

	env.engine.HandleMessage(webMessage("hello"))
	require.Len(t, sessionTranscript(t, env), 2)

	env.engine.HandleMessage(webMessage("/reset"))

	assert.Empty(t, sessionTranscript(t, env))
	assert.Contains(t, env.responder.allSignals(), "reset")

	// The next submission starts a fresh model context.
	env.engine.HandleMessage(webMessage("hello again"))
	fresh := client.receivedAt(client.turnCount() - 1)
	var userTurns int
	for _, m := range fresh {
		if m.Role == llm.RoleUser {
			userTurns++
		}
	}
	assert.Equal(t, 1, userTurns)
}

func TestAttachmentReadFailureAbortsBeforePlaceholder(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		textChunksTurn("unused"),
	}}
	env := newTestEnv(t, client, nil)

	msg := webMessage("summarize this")
	msg.Files = []api.FileAttachment{{Filename: "feed.csv", Path: "/nonexistent/feed.csv"}}
	env.engine.HandleMessage(msg)

	assert.Empty(t, sessionTranscript(t, env), "a failed read must not touch the transcript")
	assert.Equal(t, 0, client.turnCount())

	replies := env.responder.allReplies()
	require.NotEmpty(t, replies)
	assert.Contains(t, replies[0], "Could not read attachment")
}

func TestInlineAttachmentReachesModelContext(t *testing.T) {
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		textChunksTurn("Your feed shows two rows."),
	}}
	env := newTestEnv(t, client, nil)

	msg := webMessage("summarize this")
	msg.Files = []api.FileAttachment{{Filename: "feed.csv", MimeType: "text/csv", Content: "sku,price\nA-1,99"}}
	env.engine.HandleMessage(msg)

	first := client.receivedAt(0)
	var userText string
	for _, m := range first {
		if m.Role == llm.RoleUser {
			userText = m.GetTextContent()
		}
	}
	assert.Contains(t, userText, "[ATTACHMENT feed.csv]")
	assert.Contains(t, userText, "A-1,99")

	msgs := sessionTranscript(t, env)
	require.NotEmpty(t, msgs)
	require.NotNil(t, msgs[0].Attachment)
	assert.Equal(t, "feed.csv", msgs[0].Attachment.Name)
}

func TestCatalogSnapshotEnrichesContext(t *testing.T) {
	catalog := dashboard.NewCatalog([]dashboard.Product{{
		Name:     "AirFryer Pro",
		Platform: "momo",
		OwnPrice: 2490,
		Currency: "TWD",
		Competitors: []dashboard.CompetitorPrice{
			{Seller: "RivalMart", Price: 2390},
		},
	}})
	client := &scriptedClient{turns: [][]llm.StreamChunk{
		textChunksTurn("RivalMart beats you by 100."),
	}}
	env := newTestEnv(t, client, catalog)

	env.engine.HandleMessage(webMessage("how is the airfryer pro doing"))

	first := client.receivedAt(0)
	var userText string
	for _, m := range first {
		if m.Role == llm.RoleUser {
			userText = m.GetTextContent()
		}
	}
	assert.Contains(t, userText, "[COMPETITOR SNAPSHOT]")
	assert.Contains(t, userText, "AirFryer Pro")
}

// cancelClient blocks its first turn until the context is cancelled, then
// answers normally on the next turn.
type cancelClient struct {
	mu    sync.Mutex
	calls int
}

func (c *cancelClient) StreamChat(ctx context.Context, _ []llm.Message, _ any) (<-chan llm.StreamChunk, error) {
	c.mu.Lock()
	c.calls++
	first := c.calls == 1
	c.mu.Unlock()

	if first {
		ch := make(chan llm.StreamChunk, 1)
		ch <- llm.NewTextChunk("Partial thought")
		// Never closed before cancellation; the decoder exits via ctx.
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return ch, nil
	}

	ch := make(chan llm.StreamChunk, 2)
	ch <- llm.NewTextChunk("Second answer.")
	close(ch)
	return ch, nil
}

func (c *cancelClient) Provider() string { return "cancel" }
func (c *cancelClient) IsTransientError(error) bool { return false }
func (c *cancelClient) SetDebug(bool) {}

func TestNewSubmissionCancelsInFlightTurn(t *testing.T) {
	client := &cancelClient{}
	env := newTestEnv(t, client, nil)

	done := make(chan struct{})
	go func() {
		env.engine.HandleMessage(webMessage("first question"))
		close(done)
	}()

	// Wait until the first turn has streamed something.
	require.Eventually(t, func() bool {
		msgs := sessionTranscript(t, env)
		return len(msgs) == 2 && msgs[1].Content == "Partial thought"
	}, 2*time.Second, 5*time.Millisecond)

	env.engine.HandleMessage(webMessage("second question"))
	<-done

	msgs := sessionTranscript(t, env)
	require.Len(t, msgs, 4)
	assert.Equal(t, "Partial thought", msgs[1].Content)
	assert.False(t, msgs[1].Pending, "interrupted partial text must be sealed")
	assert.Equal(t, "second question", msgs[2].Content)
	assert.Equal(t, "Second answer.", msgs[3].Content)
	assert.NotContains(t, env.responder.allReplies(), apologyText, "cancellation is not a failure")
}
