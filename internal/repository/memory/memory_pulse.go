package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/forgepulse/agentflow/internal/apperror"
	"github.com/forgepulse/agentflow/internal/domain"
)

// PulseStore is an in-memory PulseRepository.
type PulseStore struct {
	mu         sync.RWMutex
	pulses     map[string]*domain.Pulse
	byWorkflow map[string][]string
	preflight  map[string]*domain.PreflightSetup // workflowID -> setup
	baselines  map[string][]domain.Baseline       // workflowID -> baselines
}

// NewPulseStore creates an empty store.
func NewPulseStore() *PulseStore {
	return &PulseStore{
		pulses:     make(map[string]*domain.Pulse),
		byWorkflow: make(map[string][]string),
		preflight:  make(map[string]*domain.PreflightSetup),
		baselines:  make(map[string][]domain.Baseline),
	}
}

func (s *PulseStore) Create(_ context.Context, p *domain.Pulse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.pulses[p.ID] = &cp
	s.byWorkflow[p.WorkflowID] = append(s.byWorkflow[p.WorkflowID], p.ID)
	return nil
}

func (s *PulseStore) StartPulse(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pulses[id]
	if !ok {
		return apperror.NotFound("pulse", id)
	}
	for _, other := range s.pulses {
		if other.WorkflowID == p.WorkflowID && other.Status == domain.PulseRunning {
			return apperror.New(apperror.KindConflict, "a pulse is already running for this workflow")
		}
	}
	now := time.Now()
	p.Status = domain.PulseRunning
	p.StartedAt = &now
	return nil
}

func (s *PulseStore) CompletePulse(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pulses[id]
	if !ok {
		return apperror.NotFound("pulse", id)
	}
	now := time.Now()
	p.Status = domain.PulseSucceeded
	p.EndedAt = &now
	return nil
}

func (s *PulseStore) FailPulse(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pulses[id]
	if !ok {
		return apperror.NotFound("pulse", id)
	}
	now := time.Now()
	p.Status = domain.PulseFailed
	p.FailureReason = reason
	p.EndedAt = &now
	return nil
}

func (s *PulseStore) StopPulse(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pulses[id]
	if !ok {
		return apperror.NotFound("pulse", id)
	}
	now := time.Now()
	p.Status = domain.PulseStopped
	p.EndedAt = &now
	return nil
}

func (s *PulseStore) GetRunningPulse(_ context.Context, workflowID string) (*domain.Pulse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.byWorkflow[workflowID] {
		if p := s.pulses[id]; p.Status == domain.PulseRunning {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("running pulse for workflow", workflowID)
}

func (s *PulseStore) GetPulsesForWorkflow(_ context.Context, workflowID string) ([]domain.Pulse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Pulse, 0, len(s.byWorkflow[workflowID]))
	for _, id := range s.byWorkflow[workflowID] {
		out = append(out, *s.pulses[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlannedIndex < out[j].PlannedIndex })
	return out, nil
}

// GetNextProposedPulse returns the lowest planned-index proposed pulse
// whose DependsOn are all succeeded, honoring the topological/tie-break
// rule from spec.md §3.
func (s *PulseStore) GetNextProposedPulse(_ context.Context, workflowID string) (*domain.Pulse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statusByPlannedID := make(map[string]domain.PulseStatus)
	for _, id := range s.byWorkflow[workflowID] {
		p := s.pulses[id]
		statusByPlannedID[p.PlannedPulseID] = p.Status
	}

	var candidates []*domain.Pulse
	for _, id := range s.byWorkflow[workflowID] {
		p := s.pulses[id]
		if p.Status != domain.PulseProposed {
			continue
		}
		ready := true
		for _, dep := range p.DependsOn {
			if statusByPlannedID[dep] != domain.PulseSucceeded {
				ready = false
				break
			}
		}
		if ready {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, apperror.NotFound("next proposed pulse for workflow", workflowID)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].PlannedIndex < candidates[j].PlannedIndex })
	cp := *candidates[0]
	return &cp, nil
}

func (s *PulseStore) IncrementRejectionCount(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pulses[id]
	if !ok {
		return 0, apperror.NotFound("pulse", id)
	}
	p.RejectionCount++
	return p.RejectionCount, nil
}

func (s *PulseStore) CreatePreflightSetup(_ context.Context, p *domain.PreflightSetup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.preflight[p.WorkflowID] = &cp
	return nil
}

func (s *PulseStore) GetPreflightSetup(_ context.Context, workflowID string) (*domain.PreflightSetup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.preflight[workflowID]
	if !ok {
		return nil, apperror.NotFound("preflight setup for workflow", workflowID)
	}
	cp := *p
	return &cp, nil
}

func (s *PulseStore) CompletePreflightSetup(_ context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.preflight[workflowID]
	if !ok {
		return apperror.NotFound("preflight setup for workflow", workflowID)
	}
	now := time.Now()
	p.Status = domain.PulseSucceeded
	p.EndedAt = &now
	return nil
}

func (s *PulseStore) FailPreflightSetup(_ context.Context, workflowID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.preflight[workflowID]
	if !ok {
		return apperror.NotFound("preflight setup for workflow", workflowID)
	}
	now := time.Now()
	p.Status = domain.PulseFailed
	p.FailureReason = reason
	p.EndedAt = &now
	return nil
}

func (s *PulseStore) RecordBaseline(_ context.Context, b *domain.Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[b.WorkflowID] = append(s.baselines[b.WorkflowID], *b)
	return nil
}

func (s *PulseStore) MatchesBaseline(_ context.Context, workflowID string, issueType domain.BaselineIssueType, source domain.BaselineSource, pattern, filePath string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.baselines[workflowID] {
		if b.IssueType == issueType && b.Source == source && b.Pattern == pattern {
			if b.FilePath == "" || b.FilePath == filePath {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *PulseStore) CountBaselines(_ context.Context, workflowID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.baselines[workflowID]), nil
}
