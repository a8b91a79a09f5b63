package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var filenameSafeRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// SessionManager manages multiple transcripts isolated by session ID.
// It is the persistence boundary: the engine reads and mutates transcripts,
// the session-list collaborator decides when they are saved or loaded.
type SessionManager struct {
	transcripts map[string]*Transcript
	storage     string
	mu          sync.RWMutex
}

// NewSessionManager initializes a SessionManager with a specific storage directory.
// An empty storage directory disables persistence entirely.
func NewSessionManager(storage string) *SessionManager {
	if storage != "" {
		os.MkdirAll(storage, 0755)
	}
	return &SessionManager{
		transcripts: make(map[string]*Transcript),
		storage:     storage,
	}
}

// Get retrieves an existing Transcript for a session or creates/loads a new one.
func (sm *SessionManager) Get(sessionID string) (*Transcript, error) {
	sm.mu.RLock()
	t, ok := sm.transcripts[sessionID]
	sm.mu.RUnlock()

	if ok {
		return t, nil
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	// Double check under lock
	if t, ok = sm.transcripts[sessionID]; ok {
		return t, nil
	}

	t = New()
	if sm.storage != "" {
		if err := t.Load(sm.path(sessionID)); err != nil {
			return nil, err
		}
	}

	sm.transcripts[sessionID] = t
	return t, nil
}

// Save persists a specific session's transcript to disk.
func (sm *SessionManager) Save(sessionID string) error {
	sm.mu.RLock()
	t, ok := sm.transcripts[sessionID]
	sm.mu.RUnlock()

	if !ok || sm.storage == "" {
		return nil
	}

	return t.Save(sm.path(sessionID))
}

// Reset clears a session's transcript and removes its persisted file.
func (sm *SessionManager) Reset(sessionID string) error {
	sm.mu.RLock()
	t, ok := sm.transcripts[sessionID]
	sm.mu.RUnlock()

	if ok {
		t.Reset()
	}
	if sm.storage == "" {
		return nil
	}
	if err := os.Remove(sm.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (sm *SessionManager) path(sessionID string) string {
	safeID := filenameSafeRegex.ReplaceAllString(sessionID, "_")
	return filepath.Join(sm.storage, fmt.Sprintf("transcript_%s.json", safeID))
}
