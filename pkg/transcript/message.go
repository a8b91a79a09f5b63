package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Role constants for transcript entries. The widget transcript only ever
// shows user input and assistant output; tool results and system prompts
// live in the model conversation context, not here.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the widget transcript.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolNotice marks a system-style "tool was invoked" annotation.
	// Notices render distinctly in the widget and are never mutated
	// after being appended.
	ToolNotice bool `json:"tool_notice,omitempty"`

	// Pending marks the provisional assistant entry of an in-flight turn.
	// Exactly zero or one message carries this flag, and only at the tail;
	// it is the structural key the tail-mutation operations match on.
	Pending bool `json:"pending,omitempty"`

	// Attachment references a user-supplied file. Content is captured once
	// at submission time and never re-read.
	Attachment *Attachment `json:"attachment,omitempty"`

	Timestamp int64 `json:"timestamp"`
}

// Attachment holds a user-supplied file's name and text content.
type Attachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// NewUserMessage builds a user entry.
func NewUserMessage(text string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: time.Now().Unix(),
	}
}

// NewAssistantMessage builds an assistant entry.
func NewAssistantMessage(text string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Content:   text,
		Timestamp: time.Now().Unix(),
	}
}

// NewPendingMessage builds the provisional assistant entry shown while a
// turn is in flight. The text is presentation only; tail mutations match
// on the Pending flag, never on the literal.
func NewPendingMessage(text string) Message {
	m := NewAssistantMessage(text)
	m.Pending = true
	return m
}

// NewToolNotice builds an annotation recording that a tool was invoked.
func NewToolNotice(summary string) Message {
	m := NewAssistantMessage(summary)
	m.ToolNotice = true
	return m
}

// IsPending reports whether a message is the provisional in-flight entry.
// Exported as the canonical ReplaceTail predicate.
func IsPending(m Message) bool {
	return m.Pending
}
