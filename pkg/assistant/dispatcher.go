package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pricepulse/pkg/api"
	"pricepulse/pkg/llm"
	"pricepulse/pkg/transcript"
)

// dispatchBatch executes one turn's collected tool calls sequentially, in
// request order. Each executed call leaves a tool-notice message in the
// transcript and a tool-result message for the model context; a failing
// handler is captured as a failure result instead of aborting the batch, so
// the model can see what went wrong and react. Navigation requests are
// coalesced: only the last one of the batch fires, after every call ran.
func (e *Engine) dispatchBatch(ctx context.Context, tr *transcript.Transcript, session api.SessionContext, calls []llm.ToolCall) ([]llm.Message, error) {
	if e.registry == nil {
		return nil, errors.New("tool registry is not configured")
	}

	results := make([]llm.Message, 0, len(calls))
	navigateTo := ""

	for _, call := range calls {
		output, summary, nav := e.executeCall(ctx, call)

		if summary != "" {
			// The first notice of the batch takes the place of the pending
			// placeholder when the model produced no prose; later notices
			// append after it.
			tr.ReplaceTail(transcript.IsPending, transcript.NewToolNotice(summary))
			e.responder.SendSignal(session, "role:system")
			e.responder.SendReply(session, summary)
		}
		if nav != "" {
			navigateTo = nav
		}

		results = append(results, llm.NewToolResultMessage(call.ID, call.Name, output))
	}

	if navigateTo != "" {
		e.state.RequestNavigation(navigateTo)
	}
	return results, nil
}

// executeCall runs a single tool call and reports its model-facing output,
// the user-facing notice summary, and any navigation request. A call naming
// an unregistered tool is not executed: it produces an error result for the
// model but no notice. Handler panics are contained to the call.
func (e *Engine) executeCall(ctx context.Context, call llm.ToolCall) (output, summary, navigateTo string) {
	tool, exists := e.registry.Get(call.Name)
	if !exists {
		slog.Warn(fmt.Sprintf("⚠️ Model requested unknown tool '%s'", call.Name))
		return fmt.Sprintf("Error: unknown tool '%s'", call.Name), "", ""
	}

	args := map[string]any{}
	rawArgs := call.Function.Arguments
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			slog.Error(fmt.Sprintf("❌ Tool '%s' received unparseable arguments: %v", call.Name, err))
			return fmt.Sprintf("Error: invalid arguments for tool '%s': %v", call.Name, err),
				fmt.Sprintf("⚠️ Tool %s failed: invalid arguments", call.Name), ""
		}
	}

	slog.Info(fmt.Sprintf("🛠️ Executing tool '%s' with args: %s", call.Name, rawArgs))

	result, err := e.runTool(ctx, tool, args)
	if err != nil {
		slog.Error(fmt.Sprintf("❌ Tool '%s' failed: %v", call.Name, err))
		return fmt.Sprintf("Error: %v", err), fmt.Sprintf("⚠️ Tool %s failed", call.Name), ""
	}

	slog.Info(fmt.Sprintf("✅ Tool '%s' completed: %s", call.Name, result.Summary))
	return result.Output, result.Summary, result.NavigateTo
}

// runTool isolates a handler invocation so a panicking tool surfaces as an
// ordinary error result.
func (e *Engine) runTool(ctx context.Context, tool api.Tool, args map[string]any) (result *api.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool '%s' panicked: %v", tool.Name(), r)
		}
	}()
	result, err = tool.Execute(ctx, args)
	if err == nil && result == nil {
		err = fmt.Errorf("tool '%s' returned no result", tool.Name())
	}
	return result, err
}
