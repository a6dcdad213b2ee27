package execsession

import "sync"

// Store is a process-scoped registry of active exec sessions, keyed by
// ProcessID, so a long-running PTY-backed command can be started on one
// shell tool call and polled or written to on subsequent calls.
//
// Follows the same pattern as mcp.McpStore.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*ExecSession
}

// NewStore creates a new empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*ExecSession)}
}

// Put registers a session under its ProcessID.
func (s *Store) Put(sess *ExecSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ProcessID] = sess
}

// Get returns the session for processID, if any.
func (s *Store) Get(processID string) (*ExecSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[processID]
	return sess, ok
}

// Remove closes and forgets the session for processID.
func (s *Store) Remove(processID string) {
	s.mu.Lock()
	sess, ok := s.sessions[processID]
	if ok {
		delete(s.sessions, processID)
	}
	s.mu.Unlock()

	if ok {
		sess.Close()
	}
}
