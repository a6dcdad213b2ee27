// Package repository defines the persistence contracts for the
// orchestration core. Interfaces only — any storage engine may implement
// them; see repository/memory for the reference implementation and
// repository/sqlite for a concrete backing store.
//
// Corresponds to: mfateev/temporal-agent-harness internal/history.ContextManager
// (the single-session conversation contract), expanded into one contract
// per entity in the workflow/session/turn/pulse graph.
package repository

import (
	"context"

	"github.com/forgepulse/agentflow/internal/domain"
)

// WorkflowRepository persists Workflow entities.
type WorkflowRepository interface {
	Create(ctx context.Context, w *domain.Workflow) error
	GetByID(ctx context.Context, id string) (*domain.Workflow, error)
	UpdateStatus(ctx context.Context, id string, status domain.WorkflowStage) error
	SetCurrentSession(ctx context.Context, workflowID string, sessionID *string) error
	SetAwaitingApproval(ctx context.Context, workflowID string, artifactType domain.ArtifactType) error
	ClearAwaitingApproval(ctx context.Context, workflowID string) error
	// TransitionStage atomically persists the new stage and the new (or
	// nil) current session id.
	TransitionStage(ctx context.Context, workflowID string, newStage domain.WorkflowStage, newSessionID *string) error
	SetBaseBranch(ctx context.Context, workflowID, baseBranch string) error
	SetSkippedStages(ctx context.Context, workflowID string, stages []domain.WorkflowStage) error
}

// ArtifactRepository persists ScopeCard/ResearchCard/Plan/ReviewCard and
// their review comments.
type ArtifactRepository interface {
	SaveScopeCard(ctx context.Context, c *domain.ScopeCard) error
	LatestScopeCard(ctx context.Context, workflowID string) (*domain.ScopeCard, error)
	SetScopeCardStatus(ctx context.Context, id string, status domain.ArtifactStatus) error

	SaveResearchCard(ctx context.Context, c *domain.ResearchCard) error
	LatestResearchCard(ctx context.Context, workflowID string) (*domain.ResearchCard, error)
	SetResearchCardStatus(ctx context.Context, id string, status domain.ArtifactStatus) error

	SavePlan(ctx context.Context, p *domain.Plan) error
	LatestPlan(ctx context.Context, workflowID string) (*domain.Plan, error)
	SetPlanStatus(ctx context.Context, id string, status domain.ArtifactStatus) error

	CreateReviewCard(ctx context.Context, c *domain.ReviewCard) error
	LatestReviewCard(ctx context.Context, workflowID string) (*domain.ReviewCard, error)
	SetReviewCardStatus(ctx context.Context, id string, status domain.ArtifactStatus) error
	SetReviewCardDiff(ctx context.Context, id string, diff string) error
	SetReviewCardRecommendation(ctx context.Context, id string, rec domain.ReviewRecommendation, commitMessage string) error

	AddReviewComment(ctx context.Context, c *domain.ReviewComment) error
	GetReviewComments(ctx context.Context, reviewCardID string) ([]domain.ReviewComment, error)

	// DeleteForWorkflow cascades artifact deletion when a workflow is deleted.
	DeleteForWorkflow(ctx context.Context, workflowID string) error
}

// ConversationRepository persists Turn/Message/Thought/ToolCall rows.
type ConversationRepository interface {
	CreateTurn(ctx context.Context, t *domain.Turn) error
	CompleteTurn(ctx context.Context, turnID string, promptTokens, completionTokens int) error
	ErrorTurn(ctx context.Context, turnID string, errMsg string) error

	SaveMessage(ctx context.Context, m *domain.Message) error
	SaveThought(ctx context.Context, t *domain.Thought) error

	RecordToolStart(ctx context.Context, tc *domain.ToolCall) error
	RecordToolComplete(ctx context.Context, toolCallID string, output string, status domain.ToolCallStatus) error

	GetHistory(ctx context.Context, sessionID string) ([]domain.Turn, error)
	// LoadSessionContext returns turns plus their messages/thoughts/tool
	// calls, ordered, for rebuilding an LLM prompt after a restart.
	LoadSessionContext(ctx context.Context, sessionID string) (*SessionContext, error)
}

// SessionContext is the full conversational state of one session.
type SessionContext struct {
	Turns    []domain.Turn
	Messages map[string][]domain.Message // turnID -> messages
	Thoughts map[string][]domain.Thought // turnID -> thoughts
	Tools    map[string][]domain.ToolCall // turnID -> tool calls
}

// PulseRepository persists Pulse, PreflightSetup, and Baseline rows.
type PulseRepository interface {
	Create(ctx context.Context, p *domain.Pulse) error
	StartPulse(ctx context.Context, id string) error
	CompletePulse(ctx context.Context, id string) error
	FailPulse(ctx context.Context, id, reason string) error
	StopPulse(ctx context.Context, id string) error
	GetRunningPulse(ctx context.Context, workflowID string) (*domain.Pulse, error)
	GetPulsesForWorkflow(ctx context.Context, workflowID string) ([]domain.Pulse, error)
	GetNextProposedPulse(ctx context.Context, workflowID string) (*domain.Pulse, error)
	IncrementRejectionCount(ctx context.Context, id string) (int, error)

	CreatePreflightSetup(ctx context.Context, p *domain.PreflightSetup) error
	GetPreflightSetup(ctx context.Context, workflowID string) (*domain.PreflightSetup, error)
	CompletePreflightSetup(ctx context.Context, workflowID string) error
	FailPreflightSetup(ctx context.Context, workflowID, reason string) error

	RecordBaseline(ctx context.Context, b *domain.Baseline) error
	MatchesBaseline(ctx context.Context, workflowID string, issueType domain.BaselineIssueType, source domain.BaselineSource, pattern, filePath string) (bool, error)
	CountBaselines(ctx context.Context, workflowID string) (int, error)
}

// SessionRepository persists Session rows.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	UpdateStatus(ctx context.Context, id string, status domain.SessionStatus) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetActiveByContext(ctx context.Context, contextType domain.ContextType, contextID string) (*domain.Session, error)
}
