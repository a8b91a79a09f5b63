package api

import (
	"context"

	"pricepulse/pkg/llm"
)

// Tool defines the structural interface for any capability the assistant
// can execute. It includes metadata for prompt injection (JSON Schema)
// and the execution logic itself.
type Tool interface {
	llm.Tool
	// Execute performs the actual tool logic using the provided argument map.
	Execute(ctx context.Context, args map[string]any) (*ToolResult, error)
}

// ToolResult encapsulates the outcome of a tool execution.
type ToolResult struct {
	// Summary is the short human-readable line shown as the tool notice
	// in the transcript.
	Summary string `json:"summary"`
	// Output is the machine-readable result string fed back to the model.
	Output string `json:"output"`
	// NavigateTo requests a deferred navigation to a dashboard view. The
	// dispatcher coalesces these across a batch and fires navigation once.
	NavigateTo string `json:"navigate_to,omitempty"`
	// Details carries arbitrary technical metadata.
	Details map[string]any `json:"details,omitempty"`
}

// ToolRegistry defines the interface for managing and accessing tools.
type ToolRegistry interface {
	Register(tool Tool)
	Unregister(name string)
	Get(name string) (Tool, bool)
	GetAll() []Tool
	// Declarations renders every registered tool as a provider-neutral
	// function declaration.
	Declarations() []map[string]any
}
