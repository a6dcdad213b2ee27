// Package pulseorchestrator owns the in_progress stage's sub-pipeline:
// worktree/branch setup, preflight bookkeeping, and sequencing planned
// pulses through proposed -> running -> succeeded/failed/stopped.
//
// Grounded on the DAG-less sequential tool dispatch pattern in
// internal/workflow/tool_execution.go and the Plan/PulseDescriptor
// ordering rules from spec.md §3; dependency resolution itself lives in
// the PulseRepository implementation (see repository/memory's
// GetNextProposedPulse), this package only sequences calls to it.
package pulseorchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/forgepulse/agentflow/internal/apperror"
	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/eventbus"
	"github.com/forgepulse/agentflow/internal/gitworktree"
	"github.com/forgepulse/agentflow/internal/repository"
)

// MaxRejections is the rejection-count cap: once a pulse's rejection count
// exceeds this, it is marked failed instead of retried again.
const MaxRejections = 3

// PulsingInit is the outcome of initializing the in_progress sub-pipeline.
type PulsingInit struct {
	Success        bool
	WorkflowBranch string
	WorktreePath   string
}

// Service coordinates pulse lifecycle and worktree setup for one workflow
// at a time. Safe for concurrent use across different workflows; the
// underlying repository enforces per-workflow invariants (at most one
// running pulse).
type Service struct {
	pulses    repository.PulseRepository
	worktrees *gitworktree.Service
	bus       *eventbus.Bus
}

// New creates a pulse orchestrator.
func New(pulses repository.PulseRepository, worktrees *gitworktree.Service, bus *eventbus.Bus) *Service {
	return &Service{pulses: pulses, worktrees: worktrees, bus: bus}
}

// InitializePulsing creates the workflow's worktree and branch off
// baseBranch, ready for the preflight session and the pulses to follow.
func (s *Service) InitializePulsing(ctx context.Context, repoRoot, workflowID, baseBranch string) (*PulsingInit, error) {
	worktreePath, err := s.worktrees.InitializeWorktree(ctx, repoRoot, workflowID, baseBranch)
	if err != nil {
		return nil, fmt.Errorf("initialize pulsing: %w", err)
	}
	return &PulsingInit{
		Success:        true,
		WorkflowBranch: s.worktrees.GetWorkflowBranch(workflowID),
		WorktreePath:   worktreePath,
	}, nil
}

// CreatePulsesFromPlan persists each planned pulse as proposed, preserving
// order and dependencies.
func (s *Service) CreatePulsesFromPlan(ctx context.Context, workflowID string, descriptors []domain.PulseDescriptor) error {
	for _, d := range descriptors {
		p := &domain.Pulse{
			ID:             d.ID,
			WorkflowID:     workflowID,
			PlannedPulseID: d.ID,
			Status:         domain.PulseProposed,
			Description:    d.Description,
			PlannedIndex:   d.PlannedIndex,
			DependsOn:      d.DependsOn,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.pulses.Create(ctx, p); err != nil {
			return fmt.Errorf("create pulse %s: %w", d.ID, err)
		}
	}
	return nil
}

// CreatePreflightSetup marks a preflight row running for sessionID.
func (s *Service) CreatePreflightSetup(ctx context.Context, workflowID, sessionID string) error {
	setup := &domain.PreflightSetup{
		WorkflowID: workflowID,
		SessionID:  sessionID,
		Status:     domain.PulseRunning,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.pulses.CreatePreflightSetup(ctx, setup); err != nil {
		return fmt.Errorf("create preflight setup: %w", err)
	}
	return nil
}

// CompletePreflight marks the workflow's preflight setup succeeded.
func (s *Service) CompletePreflight(ctx context.Context, workflowID string) error {
	if err := s.pulses.CompletePreflightSetup(ctx, workflowID); err != nil {
		return fmt.Errorf("complete preflight setup: %w", err)
	}
	return nil
}

// FailPreflight marks the workflow's preflight setup failed with reason.
func (s *Service) FailPreflight(ctx context.Context, workflowID, reason string) error {
	if err := s.pulses.FailPreflightSetup(ctx, workflowID, reason); err != nil {
		return fmt.Errorf("fail preflight setup: %w", err)
	}
	return nil
}

// IsPreflightComplete reports whether the workflow's preflight setup
// finished successfully.
func (s *Service) IsPreflightComplete(ctx context.Context, workflowID string) (bool, error) {
	setup, err := s.pulses.GetPreflightSetup(ctx, workflowID)
	if err != nil {
		return false, fmt.Errorf("get preflight setup: %w", err)
	}
	return setup.Status == domain.PulseSucceeded, nil
}

// IsPreflightFailed reports whether the workflow's preflight setup failed.
func (s *Service) IsPreflightFailed(ctx context.Context, workflowID string) (bool, error) {
	setup, err := s.pulses.GetPreflightSetup(ctx, workflowID)
	if err != nil {
		return false, fmt.Errorf("get preflight setup: %w", err)
	}
	return setup.Status == domain.PulseFailed, nil
}

// StartNextPulse picks the next ready proposed pulse, honoring dependsOn,
// marks it running, and returns it. Returns (nil, nil) if none remain.
func (s *Service) StartNextPulse(ctx context.Context, workflowID string) (*domain.Pulse, error) {
	next, err := s.pulses.GetNextProposedPulse(ctx, workflowID)
	if apperror.IsKind(err, apperror.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get next proposed pulse: %w", err)
	}
	if err := s.pulses.StartPulse(ctx, next.ID); err != nil {
		return nil, fmt.Errorf("start pulse %s: %w", next.ID, err)
	}
	next.Status = domain.PulseRunning
	s.bus.Broadcast(eventbus.Event{Type: eventbus.EventPulseStarted, Payload: next})
	return next, nil
}

// CompletePulse marks pulseID succeeded and reports whether workflowID has
// another proposed pulse ready to start (one whose dependencies have all
// succeeded); proposed pulses still waiting on a dependency are not counted.
func (s *Service) CompletePulse(ctx context.Context, workflowID, pulseID string, hasUnresolvedIssues bool) (bool, error) {
	if err := s.pulses.CompletePulse(ctx, pulseID); err != nil {
		return false, fmt.Errorf("complete pulse %s: %w", pulseID, err)
	}
	s.bus.Broadcast(eventbus.Event{Type: eventbus.EventPulseSucceeded, Payload: pulseID})

	remaining, err := s.pulses.GetNextProposedPulse(ctx, workflowID)
	if apperror.IsKind(err, apperror.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check remaining pulses: %w", err)
	}
	return remaining != nil, nil
}

// FailPulse marks pulseID failed with reason.
func (s *Service) FailPulse(ctx context.Context, pulseID, reason string) error {
	if err := s.pulses.FailPulse(ctx, pulseID, reason); err != nil {
		return fmt.Errorf("fail pulse %s: %w", pulseID, err)
	}
	s.bus.Broadcast(eventbus.Event{Type: eventbus.EventPulseFailed, Payload: pulseID})
	return nil
}

// StopPulse marks pulseID stopped, used when a retry supersedes it.
func (s *Service) StopPulse(ctx context.Context, pulseID string) error {
	if err := s.pulses.StopPulse(ctx, pulseID); err != nil {
		return fmt.Errorf("stop pulse %s: %w", pulseID, err)
	}
	s.bus.Broadcast(eventbus.Event{Type: eventbus.EventPulseStopped, Payload: pulseID})
	return nil
}

// IncrementRejectionCount bumps pulseID's rejection count and reports
// whether it has now exceeded MaxRejections (caller should fail the pulse
// instead of retrying again in that case).
func (s *Service) IncrementRejectionCount(ctx context.Context, pulseID string) (count int, exceeded bool, err error) {
	count, err = s.pulses.IncrementRejectionCount(ctx, pulseID)
	if err != nil {
		return 0, false, fmt.Errorf("increment rejection count: %w", err)
	}
	return count, count > MaxRejections, nil
}

// MatchesBaseline reports whether a diagnostic matches one recorded during
// preflight, so verification can ignore pre-existing issues.
func (s *Service) MatchesBaseline(ctx context.Context, workflowID string, issueType domain.BaselineIssueType, source domain.BaselineSource, pattern, filePath string) (bool, error) {
	matched, err := s.pulses.MatchesBaseline(ctx, workflowID, issueType, source, pattern, filePath)
	if err != nil {
		return false, fmt.Errorf("match baseline: %w", err)
	}
	return matched, nil
}

// GetRunningPulse returns the workflow's currently running pulse, or nil if
// none is running.
func (s *Service) GetRunningPulse(ctx context.Context, workflowID string) (*domain.Pulse, error) {
	p, err := s.pulses.GetRunningPulse(ctx, workflowID)
	if apperror.IsKind(err, apperror.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get running pulse: %w", err)
	}
	return p, nil
}

// SynthesizeSinglePulsePlan builds a single-pulse plan from a ScopeCard for
// the quick path, bypassing researching/planning.
func SynthesizeSinglePulsePlan(card *domain.ScopeCard) []domain.PulseDescriptor {
	return []domain.PulseDescriptor{{
		ID:           card.ID + "-quick",
		Title:        "Quick path",
		Description:  card.Summary,
		PlannedIndex: 0,
	}}
}
