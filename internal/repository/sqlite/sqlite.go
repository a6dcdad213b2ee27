// Package sqlite is a concrete repository.WorkflowRepository /
// repository.SessionRepository backing store, exercising
// github.com/mattn/go-sqlite3 the way the pack's kadirpekel/hector repo
// uses database/sql drivers for its own persistence layer.
//
// Only Workflow and Session are backed by SQLite here; Turn/Message/
// Thought/ToolCall/Artifact/Pulse data stays on the in-memory stores
// (repository/memory) by default — swapping in additional tables is a
// matter of adding more *Store types following the same pattern.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/forgepulse/agentflow/internal/apperror"
	"github.com/forgepulse/agentflow/internal/domain"
)

// WorkflowStore is a SQLite-backed repository.WorkflowRepository.
type WorkflowStore struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite database at path and ensures
// the workflows table exists.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	schema := `
CREATE TABLE IF NOT EXISTS workflows (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	priority TEXT NOT NULL,
	status TEXT NOT NULL,
	current_session_id TEXT,
	awaiting_approval INTEGER NOT NULL,
	pending_artifact_type TEXT NOT NULL,
	skipped_stages TEXT,
	base_branch TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	context_type TEXT NOT NULL,
	context_id TEXT NOT NULL,
	agent_role TEXT NOT NULL,
	status TEXT NOT NULL,
	pulse_id TEXT,
	created_at TEXT NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// NewWorkflowStore wraps an open *sql.DB (see Open).
func NewWorkflowStore(db *sql.DB) *WorkflowStore { return &WorkflowStore{db: db} }

func (s *WorkflowStore) Create(ctx context.Context, w *domain.Workflow) error {
	stages, _ := json.Marshal(w.SkippedStages)
	_, err := s.db.ExecContext(ctx, `INSERT INTO workflows
		(id, title, description, priority, status, current_session_id, awaiting_approval, pending_artifact_type, skipped_stages, base_branch, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.Title, w.Description, w.Priority, w.Status, nullableStr(w.CurrentSessionID),
		boolToInt(w.AwaitingApproval), w.PendingArtifactType, string(stages), w.BaseBranch,
		w.CreatedAt.Format(time.RFC3339Nano), w.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

func (s *WorkflowStore) GetByID(ctx context.Context, id string) (*domain.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, description, priority, status, current_session_id,
		awaiting_approval, pending_artifact_type, skipped_stages, base_branch, created_at, updated_at
		FROM workflows WHERE id = ?`, id)

	var w domain.Workflow
	var description, currentSessionID, skippedStages, baseBranch sql.NullString
	var awaitingApproval int
	var createdAt, updatedAt string
	if err := row.Scan(&w.ID, &w.Title, &description, &w.Priority, &w.Status, &currentSessionID,
		&awaitingApproval, &w.PendingArtifactType, &skippedStages, &baseBranch, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("workflow", id)
		}
		return nil, fmt.Errorf("scan workflow: %w", err)
	}
	w.Description = description.String
	w.BaseBranch = baseBranch.String
	w.AwaitingApproval = awaitingApproval != 0
	if currentSessionID.Valid {
		v := currentSessionID.String
		w.CurrentSessionID = &v
	}
	if skippedStages.Valid && skippedStages.String != "" {
		_ = json.Unmarshal([]byte(skippedStages.String), &w.SkippedStages)
	}
	w.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	w.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &w, nil
}

func (s *WorkflowStore) UpdateStatus(ctx context.Context, id string, status domain.WorkflowStage) error {
	return s.exec(ctx, id, `UPDATE workflows SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
}

func (s *WorkflowStore) SetCurrentSession(ctx context.Context, workflowID string, sessionID *string) error {
	return s.exec(ctx, workflowID, `UPDATE workflows SET current_session_id = ?, updated_at = ? WHERE id = ?`,
		nullableStr(sessionID), now(), workflowID)
}

func (s *WorkflowStore) SetAwaitingApproval(ctx context.Context, workflowID string, artifactType domain.ArtifactType) error {
	return s.exec(ctx, workflowID, `UPDATE workflows SET awaiting_approval = 1, pending_artifact_type = ?, updated_at = ? WHERE id = ?`,
		artifactType, now(), workflowID)
}

func (s *WorkflowStore) ClearAwaitingApproval(ctx context.Context, workflowID string) error {
	return s.exec(ctx, workflowID, `UPDATE workflows SET awaiting_approval = 0, pending_artifact_type = ?, updated_at = ? WHERE id = ?`,
		domain.ArtifactNone, now(), workflowID)
}

func (s *WorkflowStore) TransitionStage(ctx context.Context, workflowID string, newStage domain.WorkflowStage, newSessionID *string) error {
	return s.exec(ctx, workflowID, `UPDATE workflows SET status = ?, current_session_id = ?, awaiting_approval = 0, pending_artifact_type = ?, updated_at = ? WHERE id = ?`,
		newStage, nullableStr(newSessionID), domain.ArtifactNone, now(), workflowID)
}

func (s *WorkflowStore) SetBaseBranch(ctx context.Context, workflowID, baseBranch string) error {
	return s.exec(ctx, workflowID, `UPDATE workflows SET base_branch = ? WHERE id = ?`, baseBranch, workflowID)
}

func (s *WorkflowStore) SetSkippedStages(ctx context.Context, workflowID string, stages []domain.WorkflowStage) error {
	w, err := s.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}
	if w.SkippedStages == nil {
		w.SkippedStages = make(map[domain.WorkflowStage]bool, len(stages))
	}
	for _, st := range stages {
		w.SkippedStages[st] = true
	}
	encoded, _ := json.Marshal(w.SkippedStages)
	return s.exec(ctx, workflowID, `UPDATE workflows SET skipped_stages = ? WHERE id = ?`, string(encoded), workflowID)
}

func (s *WorkflowStore) exec(ctx context.Context, id string, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update workflow %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperror.NotFound("workflow", id)
	}
	return nil
}

func now() string { return time.Now().Format(time.RFC3339Nano) }

func nullableStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// joinStages joins stage names into a single string. Nothing in this
// package calls it.
func joinStages(stages []domain.WorkflowStage) string {
	parts := make([]string, len(stages))
	for i, st := range stages {
		parts[i] = string(st)
	}
	return strings.Join(parts, ",")
}
