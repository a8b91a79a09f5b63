package transcript

import (
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Transcript is the append-only message list backing the assistant widget.
//
// History is immutable by construction: the only mutable entry is the tail,
// and only while it is an assistant message being streamed. All mutation goes
// through the three narrow operations below, so the invariants hold
// structurally rather than by caller discipline.
type Transcript struct {
	messages []Message
	mu       sync.RWMutex
}

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{
		messages: make([]Message, 0),
	}
}

// Append adds a message to the end. Never fails.
func (t *Transcript) Append(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = append(t.messages, msg)
}

// ReplaceTail replaces the last message in place if it satisfies pred,
// otherwise appends newMsg. This is the single mechanism deciding whether
// the first chunk of a turn overwrites the pending placeholder or starts
// a fresh entry; it tolerates both an empty transcript and a tail that
// was already resolved.
func (t *Transcript) ReplaceTail(pred func(Message) bool, newMsg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.messages); n > 0 && pred(t.messages[n-1]) {
		t.messages[n-1] = newMsg
		return
	}
	t.messages = append(t.messages, newMsg)
}

// UpdateTail applies transform to the tail message's content, but only if
// the tail is a mutable assistant entry. A user message or a tool notice at
// the tail makes this a no-op, which guards against a submission racing an
// in-flight stream.
func (t *Transcript) UpdateTail(transform func(string) string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.messages)
	if n == 0 {
		return
	}
	tail := &t.messages[n-1]
	if tail.Role != RoleAssistant || tail.ToolNotice {
		return
	}
	tail.Content = transform(tail.Content)
}

// ResolveTail clears the Pending flag on the tail if pred matches it,
// sealing the streamed entry into immutable history.
func (t *Transcript) ResolveTail(pred func(Message) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.messages); n > 0 && pred(t.messages[n-1]) {
		t.messages[n-1].Pending = false
	}
}

// DropTail removes the tail message if it satisfies pred. Used when a
// cancelled turn leaves behind a placeholder that never received content.
func (t *Transcript) DropTail(pred func(Message) bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.messages); n > 0 && pred(t.messages[n-1]) {
		t.messages = t.messages[:n-1]
		return true
	}
	return false
}

// Messages returns a copy of the current transcript.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cp := make([]Message, len(t.messages))
	copy(cp, t.messages)
	return cp
}

// Last returns the tail message, if any.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Reset discards all entries.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = t.messages[:0]
}

// Save persists the transcript as JSON to the given path.
func (t *Transcript) Save(path string) error {
	t.mu.RLock()
	data, err := json.MarshalIndent(t.messages, "", "  ")
	t.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load replaces the transcript contents from a JSON file.
// A missing file is not an error; the transcript just starts empty.
func (t *Transcript) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return err
	}

	t.mu.Lock()
	t.messages = msgs
	t.mu.Unlock()
	return nil
}
