package api

import (
	"pricepulse/pkg/transcript"
)

// AssistantEngine defines the interface for the core orchestration engine.
type AssistantEngine interface {
	// HandleMessage processes one user submission end to end: appending to
	// the transcript, running the stream/tool loop, and routing output back
	// through the responder. It absorbs all failures into transcript entries.
	HandleMessage(msg *UnifiedMessage)

	// Transcript exposes the current transcript for a session
	// (the session-list persistence boundary).
	Transcript(sessionID string) (*transcript.Transcript, error)

	// ResetSession discards a session's transcript and conversation context.
	ResetSession(sessionID string) error

	SetResponder(responder MessageResponder)
	RegisterTool(tools ...Tool)
}
