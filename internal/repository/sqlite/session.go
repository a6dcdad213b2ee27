package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/forgepulse/agentflow/internal/apperror"
	"github.com/forgepulse/agentflow/internal/domain"
)

// SessionStore is a SQLite-backed repository.SessionRepository.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore wraps an open *sql.DB (see Open).
func NewSessionStore(db *sql.DB) *SessionStore { return &SessionStore{db: db} }

func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	var pulseID any
	if sess.PulseID != nil {
		pulseID = *sess.PulseID
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions
		(id, context_type, context_id, agent_role, status, pulse_id, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		sess.ID, sess.ContextType, sess.ContextID, sess.AgentRole, sess.Status, pulseID, now())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) UpdateStatus(ctx context.Context, id string, status domain.SessionStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperror.NotFound("session", id)
	}
	return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, context_type, context_id, agent_role, status, pulse_id, created_at FROM sessions WHERE id = ?`, id)
	return scanSession(row, id)
}

func (s *SessionStore) GetActiveByContext(ctx context.Context, contextType domain.ContextType, contextID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, context_type, context_id, agent_role, status, pulse_id, created_at
		FROM sessions WHERE context_type = ? AND context_id = ? AND status = 'active' LIMIT 1`, contextType, contextID)
	return scanSession(row, domain.ContextKey(contextType, contextID))
}

func scanSession(row *sql.Row, lookupKey string) (*domain.Session, error) {
	var sess domain.Session
	var pulseID sql.NullString
	var createdAt string
	if err := row.Scan(&sess.ID, &sess.ContextType, &sess.ContextID, &sess.AgentRole, &sess.Status, &pulseID, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("session", lookupKey)
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if pulseID.Valid {
		v := pulseID.String
		sess.PulseID = &v
	}
	return &sess, nil
}
