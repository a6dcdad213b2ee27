// Package notestore holds the in-memory scratchpad the take_note tool writes
// to, grounded on the same mutex-guarded, ID-keyed map pattern used by
// internal/shellapproval and internal/mcp's McpStore.
package notestore

import "sync"

// Service is a session-scoped list of free-form notes.
type Service struct {
	mu    sync.Mutex
	notes map[string][]string
}

// New creates an empty note store.
func New() *Service {
	return &Service{notes: make(map[string][]string)}
}

// Append records a note for the given session.
func (s *Service) Append(sessionID, note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[sessionID] = append(s.notes[sessionID], note)
}

// List returns every note recorded for the given session, in recording
// order.
func (s *Service) List(sessionID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.notes[sessionID]))
	copy(out, s.notes[sessionID])
	return out
}

// CleanupSession discards the notes recorded for a finished session.
func (s *Service) CleanupSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notes, sessionID)
}
