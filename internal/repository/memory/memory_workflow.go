// Package memory is the default in-memory implementation of the
// repository contracts.
//
// Corresponds to: mfateev/temporal-agent-harness internal/history.InMemoryHistory
// — the mutex-guarded slice + monotonic Seq pattern, one store per entity
// instead of one store for conversation items only.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/forgepulse/agentflow/internal/apperror"
	"github.com/forgepulse/agentflow/internal/domain"
)

// WorkflowStore is an in-memory WorkflowRepository.
type WorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]*domain.Workflow
}

// NewWorkflowStore creates an empty store.
func NewWorkflowStore() *WorkflowStore {
	return &WorkflowStore{workflows: make(map[string]*domain.Workflow)}
}

func (s *WorkflowStore) Create(_ context.Context, w *domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	s.workflows[w.ID] = &cp
	return nil
}

func (s *WorkflowStore) GetByID(_ context.Context, id string) (*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, apperror.NotFound("workflow", id)
	}
	cp := *w
	return &cp, nil
}

func (s *WorkflowStore) UpdateStatus(_ context.Context, id string, status domain.WorkflowStage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	if !ok {
		return apperror.NotFound("workflow", id)
	}
	w.Status = status
	w.UpdatedAt = time.Now()
	return nil
}

func (s *WorkflowStore) SetCurrentSession(_ context.Context, workflowID string, sessionID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[workflowID]
	if !ok {
		return apperror.NotFound("workflow", workflowID)
	}
	w.CurrentSessionID = sessionID
	w.UpdatedAt = time.Now()
	return nil
}

func (s *WorkflowStore) SetAwaitingApproval(_ context.Context, workflowID string, artifactType domain.ArtifactType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[workflowID]
	if !ok {
		return apperror.NotFound("workflow", workflowID)
	}
	w.AwaitingApproval = true
	w.PendingArtifactType = artifactType
	w.UpdatedAt = time.Now()
	return nil
}

func (s *WorkflowStore) ClearAwaitingApproval(_ context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[workflowID]
	if !ok {
		return apperror.NotFound("workflow", workflowID)
	}
	w.AwaitingApproval = false
	w.PendingArtifactType = domain.ArtifactNone
	w.UpdatedAt = time.Now()
	return nil
}

func (s *WorkflowStore) TransitionStage(_ context.Context, workflowID string, newStage domain.WorkflowStage, newSessionID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[workflowID]
	if !ok {
		return apperror.NotFound("workflow", workflowID)
	}
	w.Status = newStage
	w.CurrentSessionID = newSessionID
	w.AwaitingApproval = false
	w.PendingArtifactType = domain.ArtifactNone
	w.UpdatedAt = time.Now()
	return nil
}

func (s *WorkflowStore) SetBaseBranch(_ context.Context, workflowID, baseBranch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[workflowID]
	if !ok {
		return apperror.NotFound("workflow", workflowID)
	}
	w.BaseBranch = baseBranch
	return nil
}

func (s *WorkflowStore) SetSkippedStages(_ context.Context, workflowID string, stages []domain.WorkflowStage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[workflowID]
	if !ok {
		return apperror.NotFound("workflow", workflowID)
	}
	if w.SkippedStages == nil {
		w.SkippedStages = make(map[domain.WorkflowStage]bool, len(stages))
	}
	for _, st := range stages {
		w.SkippedStages[st] = true
	}
	return nil
}
