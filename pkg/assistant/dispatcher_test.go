package assistant

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepulse/pkg/api"
	"pricepulse/pkg/llm"
	"pricepulse/pkg/transcript"
)

// recordingTool is a scriptable api.Tool for dispatch tests.
type recordingTool struct {
	name       string
	navigateTo string
	fail       bool
	panics     bool
	order      *[]string
}

func (t *recordingTool) Name() string { return t.name }
func (t *recordingTool) Description() string { return "test tool" }
func (t *recordingTool) Parameters() map[string]any { return map[string]any{} }

func (t *recordingTool) RequiredParameters() []string { return nil }

func (t *recordingTool) Execute(_ context.Context, _ map[string]any) (*api.ToolResult, error) {
	if t.order != nil {
		*t.order = append(*t.order, t.name)
	}
	if t.panics {
		panic("handler exploded")
	}
	if t.fail {
		return nil, errors.New("backend unavailable")
	}
	return &api.ToolResult{
		Summary:    fmt.Sprintf("🛠️ Ran %s", t.name),
		Output:     "ok",
		NavigateTo: t.navigateTo,
	}, nil
}

func callFor(name string) llm.ToolCall {
	return llm.ToolCall{
		ID:       "call_" + name,
		Name:     name,
		Function: llm.FunctionCall{Name: name, Arguments: `{}`},
	}
}

func newDispatchEnv(t *testing.T, ts ...api.Tool) (*testEnv, *transcript.Transcript) {
	t.Helper()
	env := newTestEnv(t, &scriptedClient{}, nil)
	env.engine.RegisterTool(ts...)
	tr, err := env.engine.Transcript("web_global")
	require.NoError(t, err)
	return env, tr
}

func TestDispatchRunsSequentiallyInRequestOrder(t *testing.T) {
	var order []string
	env, tr := newDispatchEnv(t,
		&recordingTool{name: "first_tool", order: &order},
		&recordingTool{name: "second_tool", order: &order},
		&recordingTool{name: "third_tool", order: &order},
	)

	session := api.SessionContext{ChannelID: "web", ChatID: "global"}
	calls := []llm.ToolCall{callFor("second_tool"), callFor("first_tool"), callFor("third_tool")}

	results, err := env.engine.dispatchBatch(context.Background(), tr, session, calls)
	require.NoError(t, err)

	assert.Equal(t, []string{"second_tool", "first_tool", "third_tool"}, order)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, llm.RoleTool, r.Role)
		assert.Equal(t, calls[i].ID, r.ToolCallID)
	}
}

func TestDispatchCoalescesNavigationToLastRequest(t *testing.T) {
	env, tr := newDispatchEnv(t,
		&recordingTool{name: "go_overview", navigateTo: "overview"},
		&recordingTool{name: "go_analysis", navigateTo: "analysis"},
		&recordingTool{name: "no_nav"},
	)

	var navigations []string
	env.state.SetNavigationHook(func(view string) { navigations = append(navigations, view) })

	session := api.SessionContext{ChannelID: "web", ChatID: "global"}
	calls := []llm.ToolCall{callFor("go_overview"), callFor("go_analysis"), callFor("no_nav")}

	_, err := env.engine.dispatchBatch(context.Background(), tr, session, calls)
	require.NoError(t, err)

	assert.Equal(t, []string{"analysis"}, navigations, "only the batch's last navigation request fires")
}

func TestDispatchCapturesFailuresPerCall(t *testing.T) {
	var order []string
	env, tr := newDispatchEnv(t,
		&recordingTool{name: "failing_tool", fail: true, order: &order},
		&recordingTool{name: "healthy_tool", order: &order},
	)

	session := api.SessionContext{ChannelID: "web", ChatID: "global"}
	calls := []llm.ToolCall{callFor("failing_tool"), callFor("healthy_tool")}

	results, err := env.engine.dispatchBatch(context.Background(), tr, session, calls)
	require.NoError(t, err)

	// The failing call did not abort the batch.
	assert.Equal(t, []string{"failing_tool", "healthy_tool"}, order)

	require.Len(t, results, 2)
	assert.Contains(t, results[0].GetTextContent(), "Error:")
	assert.Equal(t, "ok", results[1].GetTextContent())

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "failed")
	assert.Contains(t, msgs[1].Content, "Ran healthy_tool")
}

func TestDispatchContainsHandlerPanics(t *testing.T) {
	env, tr := newDispatchEnv(t, &recordingTool{name: "explosive_tool", panics: true})

	session := api.SessionContext{ChannelID: "web", ChatID: "global"}
	results, err := env.engine.dispatchBatch(context.Background(), tr, session,
		[]llm.ToolCall{callFor("explosive_tool")})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Contains(t, results[0].GetTextContent(), "panicked")
}

func TestDispatchRejectsMalformedArguments(t *testing.T) {
	env, tr := newDispatchEnv(t, &recordingTool{name: "picky_tool"})

	call := llm.ToolCall{
		ID:       "call_picky",
		Name:     "picky_tool",
		Function: llm.FunctionCall{Name: "picky_tool", Arguments: `{not json`},
	}

	session := api.SessionContext{ChannelID: "web", ChatID: "global"}
	results, err := env.engine.dispatchBatch(context.Background(), tr, session, []llm.ToolCall{call})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Contains(t, results[0].GetTextContent(), "invalid arguments")
}
