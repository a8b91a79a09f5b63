package llm

import (
	"time"
)

//----------------------------------------------------------------
// Message - provider-neutral conversation entry
//----------------------------------------------------------------

// Message represents one entry of the model conversation context.
// This is the wire-side shape handed to provider clients; the user-facing
// transcript keeps its own narrower type in pkg/transcript.
type Message struct {
	Role      string         `json:"role"`    // "user", "assistant", "system", "tool"
	Content   []ContentBlock `json:"content"` // Ordered content blocks
	Timestamp int64          `json:"timestamp,omitempty"`

	// ToolCalls contains call requests produced by the model
	// (only valid for role "assistant").
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID pairs this message with the call it answers
	// (only valid for role "tool").
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolName records which handler produced this result
	// (only valid for role "tool").
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCall represents a structured call request emitted by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Function FunctionCall `json:"function"`

	// Meta holds provider-specific metadata (e.g. Gemini's thought_signature).
	// Never serialized; only carried between a turn and its continuation.
	Meta map[string]any `json:"-"`
}

// FunctionCall contains the concrete handler name and raw arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

//----------------------------------------------------------------
// ContentBlock
//----------------------------------------------------------------

// ContentBlock is an atomic unit of message content.
// Supported types: text, thinking, error.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

//----------------------------------------------------------------
// StreamChunk - one increment of a streaming response
//----------------------------------------------------------------

// StreamChunk represents one incremental unit of a model's streamed response.
// Chunks are transient: they exist only between a provider client and the
// decoder consuming the stream.
type StreamChunk struct {
	// ContentBlocks holds the new content of this chunk only (deltas, not totals).
	ContentBlocks []ContentBlock `json:"content_blocks,omitempty"`

	// ToolCalls discovered in this chunk.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// IsFinal marks the last chunk of a turn.
	IsFinal bool `json:"is_final"`

	// FinishReason is set on the final chunk only.
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage statistics; providers usually attach them to the final chunk.
	Usage *LLMUsage `json:"usage,omitempty"`

	// Error is a user-presentable error string emitted mid-stream.
	Error string `json:"error,omitempty"`
	// RawError is the underlying error for the orchestrator; never serialized.
	RawError error `json:"-"`
}

//----------------------------------------------------------------
// Helper Functions - Message
//----------------------------------------------------------------

// NewTextMessage builds a plain text message for the given role.
func NewTextMessage(role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{{
			Type: BlockTypeText,
			Text: text,
		}},
		Timestamp: time.Now().Unix(),
	}
}

// NewSystemMessage builds a system message.
func NewSystemMessage(text string) Message {
	return NewTextMessage(RoleSystem, text)
}

// NewUserMessage builds a user message.
func NewUserMessage(text string) Message {
	return NewTextMessage(RoleUser, text)
}

// NewToolResultMessage builds a tool-result message paired with a call.
func NewToolResultMessage(callID, toolName, result string) Message {
	return Message{
		Role:       RoleTool,
		ToolCallID: callID,
		ToolName:   toolName,
		Content:    []ContentBlock{{Type: BlockTypeText, Text: result}},
		Timestamp:  time.Now().Unix(),
	}
}

// AddContentBlock appends a content block to the message.
func (m *Message) AddContentBlock(block ContentBlock) {
	m.Content = append(m.Content, block)
}

// GetTextContent extracts all text content (excluding thinking).
func (m *Message) GetTextContent() string {
	var result string
	for _, block := range m.Content {
		if block.Type == BlockTypeText {
			result += block.Text
		}
	}
	return result
}

// GetThinkingContent extracts all thinking content.
func (m *Message) GetThinkingContent() string {
	var result string
	for _, block := range m.Content {
		if block.Type == BlockTypeThinking {
			result += block.Text
		}
	}
	return result
}

//----------------------------------------------------------------
// Helper Functions - ContentBlock / StreamChunk
//----------------------------------------------------------------

// NewTextBlock builds a text block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// NewThinkingBlock builds a thinking block.
func NewThinkingBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeThinking, Text: text}
}

// NewErrorBlock builds an error block shown to the user.
func NewErrorBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeError, Text: text}
}

// NewTextChunk builds a chunk carrying one text delta.
func NewTextChunk(text string) StreamChunk {
	return StreamChunk{
		ContentBlocks: []ContentBlock{{Type: BlockTypeText, Text: text}},
	}
}

// NewThinkingChunk builds a chunk carrying one thinking delta.
func NewThinkingChunk(text string) StreamChunk {
	return StreamChunk{
		ContentBlocks: []ContentBlock{{Type: BlockTypeThinking, Text: text}},
	}
}

// NewFinalChunk builds the terminating chunk with usage statistics.
func NewFinalChunk(reason string, usage *LLMUsage) StreamChunk {
	return StreamChunk{
		IsFinal:      true,
		FinishReason: reason,
		Usage:        usage,
	}
}

// NewErrorChunk builds a chunk reporting a mid-stream failure.
// fatal marks errors that terminate the stream for the orchestrator.
func NewErrorChunk(display string, raw error, fatal bool) StreamChunk {
	c := StreamChunk{Error: display}
	if fatal {
		c.RawError = raw
	}
	return c
}
