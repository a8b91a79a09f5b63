package tools

import (
	"context"
	"fmt"

	"pricepulse/pkg/dashboard"
)

// DelegateTool records an analysis request the user wants handed off to the
// pricing team. It mutates the delegation log and raises a notification; it
// never navigates.
type DelegateTool struct {
	state *dashboard.State
}

// NewDelegateTool creates the delegation tool bound to the dashboard state.
func NewDelegateTool(state *dashboard.State) *DelegateTool {
	return &DelegateTool{state: state}
}

func (t *DelegateTool) Name() string {
	return "delegate_analysis"
}

func (t *DelegateTool) Description() string {
	return "Record a pricing analysis request to be handled by an analyst later. Use this when the user asks for a deeper analysis the dashboard cannot answer directly."
}

func (t *DelegateTool) Parameters() map[string]any {
	return map[string]any{
		"topic": map[string]any{
			"type":        "string",
			"description": "Short title of the requested analysis.",
		},
		"detail": map[string]any{
			"type":        "string",
			"description": "Optional free-form description of what should be analyzed.",
		},
	}
}

func (t *DelegateTool) RequiredParameters() []string {
	return []string{"topic"}
}

func (t *DelegateTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	topic, ok := args["topic"].(string)
	if !ok || topic == "" {
		return nil, fmt.Errorf("missing string parameter 'topic'")
	}
	detail, _ := args["detail"].(string)

	t.state.RecordDelegation(topic, detail)
	t.state.PushNotification(fmt.Sprintf("Analysis request logged: %s", topic))

	return &ToolResult{
		Summary: fmt.Sprintf("📋 Logged analysis request: %s", topic),
		Output:  fmt.Sprintf("Delegation recorded: %s", topic),
	}, nil
}
