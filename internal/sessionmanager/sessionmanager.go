// Package sessionmanager enforces the per-context exclusion rule: at most
// one active session per (contextType, contextId). Starting a new session
// for a context that already has one stops the existing session first,
// atomically with respect to the context index.
//
// Grounded on HarnessWorkflow's SessionEntry/session-list bookkeeping and
// its "stop existing before starting new" pattern (harness.go
// handleStartSession), reimplemented with plain goroutines and
// context.CancelFunc instead of Temporal child workflows — there is no
// replay history to manage, so a cancellable goroutine per session is a
// direct, simpler substitute for a child workflow handle.
package sessionmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forgepulse/agentflow/internal/apperror"
	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/eventbus"
	"github.com/forgepulse/agentflow/internal/repository"
)

// RunFunc is a session's body: it runs until ctx is cancelled or the work
// completes on its own, and reports its own outcome via the returned error.
type RunFunc func(ctx context.Context, session *domain.Session) error

type active struct {
	session *domain.Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// Manager owns the context-indexed map of active sessions.
type Manager struct {
	sessions repository.SessionRepository
	bus      *eventbus.Bus

	mu     sync.Mutex
	byCtx  map[string]*active // ContextKey() -> active session
	byID   map[string]*active // session ID -> active session
	nextID int
}

// New creates a session manager.
func New(sessions repository.SessionRepository, bus *eventbus.Bus) *Manager {
	return &Manager{
		sessions: sessions,
		bus:      bus,
		byCtx:    make(map[string]*active),
		byID:     make(map[string]*active),
	}
}

// StartSession stops any session already active for (contextType,
// contextID), creates and persists a new one, and launches run in its own
// goroutine. It returns once the new session is recorded and launched; it
// does not wait for run to finish.
func (m *Manager) StartSession(ctx context.Context, contextType domain.ContextType, contextID string, role domain.AgentRole, pulseID *string, run RunFunc) (*domain.Session, error) {
	m.mu.Lock()
	key := domain.ContextKey(contextType, contextID)
	existing := m.byCtx[key]
	m.mu.Unlock()

	if existing != nil {
		m.stopAndWait(existing)
	}

	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("sess-%s-%d", time.Now().UTC().Format("20060102-150405"), m.nextID)
	m.mu.Unlock()

	session := &domain.Session{
		ID:          id,
		ContextType: contextType,
		ContextID:   contextID,
		AgentRole:   role,
		Status:      domain.SessionActive,
		PulseID:     pulseID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	entry := &active{session: session, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.byCtx[key] = entry
	m.byID[id] = entry
	m.mu.Unlock()

	m.bus.Broadcast(eventbus.Event{Type: eventbus.EventSessionStarted, Payload: session})

	go func() {
		defer close(entry.done)
		err := run(runCtx, session)
		m.finish(key, id, err)
	}()

	return session, nil
}

func (m *Manager) finish(key, id string, runErr error) {
	m.mu.Lock()
	entry, ok := m.byID[id]
	if ok {
		delete(m.byID, id)
		if m.byCtx[key] == entry {
			delete(m.byCtx, key)
		}
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	ctx := context.Background()
	if runErr != nil {
		_ = m.sessions.UpdateStatus(ctx, id, domain.SessionError)
		m.bus.Broadcast(eventbus.Event{Type: eventbus.EventSessionError, Payload: map[string]any{"session_id": id, "error": runErr.Error()}})
		return
	}
	_ = m.sessions.UpdateStatus(ctx, id, domain.SessionCompleted)
	m.bus.Broadcast(eventbus.Event{Type: eventbus.EventSessionCompleted, Payload: map[string]any{"session_id": id}})
}

// StopSession cancels the session active for (contextType, contextID), if
// any, and waits for its goroutine to exit. No-op if none is active.
func (m *Manager) StopSession(contextType domain.ContextType, contextID string) {
	m.mu.Lock()
	entry := m.byCtx[domain.ContextKey(contextType, contextID)]
	m.mu.Unlock()
	if entry == nil {
		return
	}
	m.stopAndWait(entry)
}

// StopSessionByID cancels a session by its ID and waits for it to exit.
// No-op if the session is not currently active.
func (m *Manager) StopSessionByID(sessionID string) {
	m.mu.Lock()
	entry := m.byID[sessionID]
	m.mu.Unlock()
	if entry == nil {
		return
	}
	m.stopAndWait(entry)
}

func (m *Manager) stopAndWait(entry *active) {
	entry.cancel()
	<-entry.done
}

// GetActive returns the session currently active for (contextType,
// contextID), or nil if none. Equivalent to spec.md §4.6's
// getSessionByContext.
func (m *Manager) GetActive(contextType domain.ContextType, contextID string) *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.byCtx[domain.ContextKey(contextType, contextID)]
	if entry == nil {
		return nil
	}
	return entry.session
}

// HasActiveSession reports whether a session is active for (contextType,
// contextID).
func (m *Manager) HasActiveSession(contextType domain.ContextType, contextID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byCtx[domain.ContextKey(contextType, contextID)]
	return ok
}

// GetActiveSessions returns every currently active session, in no
// particular order.
func (m *Manager) GetActiveSessions() []*domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := make([]*domain.Session, 0, len(m.byID))
	for _, entry := range m.byID {
		sessions = append(sessions, entry.session)
	}
	return sessions
}

// GetActiveSessionCount returns the number of currently active sessions.
func (m *Manager) GetActiveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// GetOrRestoreSession returns the in-memory session for id if one is
// active. Otherwise it loads the persisted row; if that row's status is
// still SessionActive (the process restarted with this session
// mid-flight), it rehydrates an active entry with a fresh cancellation
// handle and reinserts it into both indices, per spec.md §4.6's
// getOrRestoreSession and the Restartability property (spec.md §8): any
// in-flight work from before the restart is assumed lost, so the
// rehydrated entry's done channel starts closed — there is no goroutine
// backing it until a caller starts one. Returns (nil, nil) if the
// session doesn't exist or its persisted status is no longer active.
func (m *Manager) GetOrRestoreSession(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	entry, ok := m.byID[id]
	m.mu.Unlock()
	if ok {
		return entry.session, nil
	}

	session, err := m.sessions.GetByID(ctx, id)
	if apperror.IsKind(err, apperror.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get or restore session: %w", err)
	}
	if session.Status != domain.SessionActive {
		return nil, nil
	}

	_, cancel := context.WithCancel(context.Background())
	rehydrated := &active{session: session, cancel: cancel, done: make(chan struct{})}
	close(rehydrated.done)

	m.mu.Lock()
	m.byCtx[session.ContextKey()] = rehydrated
	m.byID[id] = rehydrated
	m.mu.Unlock()

	return session, nil
}

// ErrorSession marks sessionID errored and broadcasts session:error,
// swallowing "not found" so callers never need to check existence first.
// Mirrors errorWorkflow's "never throws" contract from spec.md §4.8.
func (m *Manager) ErrorSession(ctx context.Context, sessionID string, cause error) error {
	m.StopSessionByID(sessionID)
	err := m.sessions.UpdateStatus(ctx, sessionID, domain.SessionError)
	if apperror.IsKind(err, apperror.KindNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error session: %w", err)
	}
	m.bus.Broadcast(eventbus.Event{Type: eventbus.EventSessionError, Payload: map[string]any{"session_id": sessionID, "error": cause.Error()}})
	return nil
}
