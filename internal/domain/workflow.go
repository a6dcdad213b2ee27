// Package domain contains the persisted entities of the orchestrator:
// workflows, sessions, turns, their children, and the stage artifacts.
//
// Corresponds to: mfateev/temporal-agent-harness internal/models (renamed
// and restructured around the workflow/session/turn entity graph instead
// of the single-session conversation model).
package domain

import "time"

// WorkflowPriority is the urgency tag attached to a workflow.
type WorkflowPriority string

const (
	PriorityLow    WorkflowPriority = "low"
	PriorityMedium WorkflowPriority = "medium"
	PriorityHigh   WorkflowPriority = "high"
	PriorityUrgent WorkflowPriority = "urgent"
)

// WorkflowStage is a position in the stage pipeline.
type WorkflowStage string

const (
	StageBacklog     WorkflowStage = "backlog"
	StageScoping     WorkflowStage = "scoping"
	StageResearching WorkflowStage = "researching"
	StagePlanning    WorkflowStage = "planning"
	StageInProgress  WorkflowStage = "in_progress"
	StageReview      WorkflowStage = "review"
	StageDone        WorkflowStage = "done"
)

// StageTransitions is the forward-only stage pipeline. Done has no successor.
var StageTransitions = map[WorkflowStage]WorkflowStage{
	StageBacklog:     StageScoping,
	StageScoping:     StageResearching,
	StageResearching: StagePlanning,
	StagePlanning:    StageInProgress,
	StageInProgress:  StageReview,
	StageReview:      StageDone,
}

// ArtifactType identifies the kind of artifact a stage produces.
type ArtifactType string

const (
	ArtifactNone       ArtifactType = "none"
	ArtifactScopeCard  ArtifactType = "scope_card"
	ArtifactResearch   ArtifactType = "research"
	ArtifactPlan       ArtifactType = "plan"
	ArtifactReviewCard ArtifactType = "review_card"
)

// Workflow is a stateful job tracked through the stage pipeline.
//
// Invariants (see spec): at most one active session at a time;
// AwaitingApproval implies Status is one of the approval-gated stages and
// PendingArtifactType is set; Status=done implies no current session and
// AwaitingApproval=false.
type Workflow struct {
	ID                  string           `json:"id"`
	Title               string           `json:"title"`
	Description         string           `json:"description,omitempty"`
	Priority            WorkflowPriority `json:"priority"`
	Status              WorkflowStage    `json:"status"`
	CurrentSessionID    *string          `json:"current_session_id,omitempty"`
	AwaitingApproval    bool             `json:"awaiting_approval"`
	PendingArtifactType ArtifactType     `json:"pending_artifact_type"`
	SkippedStages       map[WorkflowStage]bool `json:"skipped_stages,omitempty"`
	BaseBranch          string           `json:"base_branch"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// Validate checks the class invariants listed in spec.md §3 and §8.
func (w *Workflow) Validate() error {
	if w.AwaitingApproval {
		switch w.Status {
		case StageScoping, StageResearching, StagePlanning, StageReview:
			// ok
		default:
			return ErrInvalidInvariant("awaiting_approval set outside an approval-gated stage")
		}
		if w.PendingArtifactType == ArtifactNone {
			return ErrInvalidInvariant("awaiting_approval set without a pending artifact type")
		}
	}
	if w.Status == StageDone {
		if w.CurrentSessionID != nil {
			return ErrInvalidInvariant("done workflow still has a current session")
		}
		if w.AwaitingApproval {
			return ErrInvalidInvariant("done workflow cannot be awaiting approval")
		}
	}
	return nil
}

// ErrInvalidInvariant is a sentinel error type for Validate failures.
type ErrInvalidInvariant string

func (e ErrInvalidInvariant) Error() string { return "invariant violation: " + string(e) }
