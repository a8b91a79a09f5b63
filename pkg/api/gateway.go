package api

import (
	"pricepulse/pkg/llm"
)

// Channel defines the standardized lifecycle interface for widget transports.
type Channel interface {
	ID() string
	Start(ctx ChannelContext) error
	Stop() error
	Send(session SessionContext, message string) error
	Stream(session SessionContext, blocks <-chan llm.ContentBlock) error
}

// SignalingChannel is an optional extension of the Channel interface for
// transports that support control signals (e.g., thinking indicator,
// navigation frames).
type SignalingChannel interface {
	Channel
	// SendSignal transmits a control signal (e.g., "thinking", "role:system",
	// "navigate:analysis") to the target session to change UI state.
	SendSignal(session SessionContext, signal string) error
}

// ChannelContext provides the interface for a Channel implementation to
// communicate back with the Gateway core.
type ChannelContext interface {
	MessageResponder
	OnMessage(channelID string, msg *UnifiedMessage)
}

// MessageResponder defines the capabilities for sending responses back to a channel.
type MessageResponder interface {
	SendReply(session SessionContext, content string) error
	StreamReply(session SessionContext, blocks <-chan llm.ContentBlock) error
	SendSignal(session SessionContext, signal string) error
}

// UnifiedMessage defines the standardized internal data structure for all
// incoming messages within the system.
type UnifiedMessage struct {
	Session SessionContext   // Contextual information about the source (User, Chat)
	Content string           // Standardized text content of the message
	Files   []FileAttachment // User-supplied file attachments (content read once at intake)
	Raw     any              // Optional storage for the original transport-specific payload
	NoTools bool             // Virtual flag to disable tool calling for specific requests
	DebugID string           // Unique identifier for grouping agent loop logs for this request
}

// SessionContext encapsulates identity and routing information for a specific
// assistant conversation on a specific transport.
type SessionContext struct {
	ChannelID string // Identifier of the channel that originated the session (e.g., "web")
	UserID    string // Transport-specific unique identifier for the user/connection
	ChatID    string // Identifier for the conversation session
	Username  string // Display name of the user as provided by the transport
}

// FileAttachment represents a single file uploaded by a user.
// Content is captured exactly once at submission; the engine never re-reads it.
type FileAttachment struct {
	Filename string // Original name of the uploaded file
	MimeType string // MIME type descriptor (e.g., "text/csv")
	Content  string // Text content (empty if Path is set and not yet read)
	Path     string // Path to the saved file, read once by the engine at submission
}

// MessageHandler is the callback the gateway invokes for each incoming message.
type MessageHandler func(*UnifiedMessage)
