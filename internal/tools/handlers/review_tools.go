package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgepulse/agentflow/internal/apperror"
	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/gitworktree"
	"github.com/forgepulse/agentflow/internal/repository"
	"github.com/forgepulse/agentflow/internal/tools"
)

// GetDiffTool returns the unified diff of the worktree against HEAD (its
// uncommitted changes), or against the ref in the optional "base" argument.
// It does not look up the workflow's base branch.
type GetDiffTool struct{}

// NewGetDiffTool creates a get_diff tool handler.
func NewGetDiffTool() *GetDiffTool { return &GetDiffTool{} }

func (t *GetDiffTool) Name() string              { return "get_diff" }
func (t *GetDiffTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *GetDiffTool) IsMutating(*tools.ToolInvocation) bool { return false }

func (t *GetDiffTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	root := invocation.CwdRoot()

	base := "HEAD"
	if baseArg, ok := invocation.Arguments["base"].(string); ok && baseArg != "" {
		base = baseArg
	}

	diff, err := gitworktree.GetDiff(ctx, root, base)
	if err != nil {
		success := false
		return &tools.ToolOutput{Content: fmt.Sprintf("git diff failed: %v", err), Success: &success}, nil
	}

	if strings.TrimSpace(diff) == "" {
		success := false
		return &tools.ToolOutput{Content: "No changes found.", Success: &success}, nil
	}

	success := true
	return &tools.ToolOutput{Content: diff, Success: &success}, nil
}

// GetScopeCardTool returns the workflow's latest approved scope card, the
// reviewer's anchor for what was supposed to change.
type GetScopeCardTool struct {
	artifacts repository.ArtifactRepository
}

// NewGetScopeCardTool creates a get_scope_card tool handler.
func NewGetScopeCardTool(artifacts repository.ArtifactRepository) *GetScopeCardTool {
	return &GetScopeCardTool{artifacts: artifacts}
}

func (t *GetScopeCardTool) Name() string              { return "get_scope_card" }
func (t *GetScopeCardTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *GetScopeCardTool) IsMutating(*tools.ToolInvocation) bool { return false }

func (t *GetScopeCardTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	card, err := t.artifacts.LatestScopeCard(ctx, invocation.WorkflowID)
	if apperror.IsKind(err, apperror.KindNotFound) {
		success := false
		return &tools.ToolOutput{Content: "No scope card recorded for this workflow.", Success: &success}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load scope card: %w", err)
	}

	success := true
	return &tools.ToolOutput{
		Content: fmt.Sprintf("Recommended path: %s\n\n%s", card.RecommendedPath, card.Summary),
		Success: &success,
	}, nil
}

func parseSeverity(v interface{}) (domain.ReviewCommentSeverity, error) {
	s, _ := v.(string)
	switch domain.ReviewCommentSeverity(s) {
	case domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow:
		return domain.ReviewCommentSeverity(s), nil
	default:
		return "", tools.NewValidationError("severity must be \"High\", \"Medium\", or \"Low\"")
	}
}

func currentReviewCard(ctx context.Context, artifacts repository.ArtifactRepository, workflowID string) (*domain.ReviewCard, error) {
	card, err := artifacts.LatestReviewCard(ctx, workflowID)
	if apperror.IsKind(err, apperror.KindNotFound) {
		return nil, tools.NewValidationError("no review card open for this workflow; the review stage must create one before comments can be added")
	}
	if err != nil {
		return nil, fmt.Errorf("load review card: %w", err)
	}
	return card, nil
}

// AddLineCommentTool attaches a comment to a specific line range of a file
// in the diff under review.
type AddLineCommentTool struct {
	artifacts repository.ArtifactRepository
}

// NewAddLineCommentTool creates an add_line_comment tool handler.
func NewAddLineCommentTool(artifacts repository.ArtifactRepository) *AddLineCommentTool {
	return &AddLineCommentTool{artifacts: artifacts}
}

func (t *AddLineCommentTool) Name() string              { return "add_line_comment" }
func (t *AddLineCommentTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *AddLineCommentTool) IsMutating(*tools.ToolInvocation) bool { return true }

func (t *AddLineCommentTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	filePath, ok := invocation.Arguments["filePath"].(string)
	if !ok || filePath == "" {
		return nil, tools.NewValidationError("missing required argument: filePath")
	}
	startLine, ok := intFromArg(invocation.Arguments["startLine"])
	if !ok {
		return nil, tools.NewValidationError("startLine must be a number")
	}
	endLine, ok := intFromArg(invocation.Arguments["endLine"])
	if !ok {
		endLine = startLine
	}
	body, ok := invocation.Arguments["body"].(string)
	if !ok || body == "" {
		return nil, tools.NewValidationError("missing required argument: body")
	}
	severity, err := parseSeverity(invocation.Arguments["severity"])
	if err != nil {
		return nil, err
	}

	card, err := currentReviewCard(ctx, t.artifacts, invocation.WorkflowID)
	if err != nil {
		return nil, err
	}

	comment := &domain.ReviewComment{
		ID:           uuid.NewString(),
		ReviewCardID: card.ID,
		Target:       domain.CommentLine,
		FilePath:     filePath,
		StartLine:    startLine,
		EndLine:      endLine,
		Body:         body,
		Severity:     severity,
		Author:       domain.AuthorAgent,
		CreatedAt:    time.Now().UTC(),
	}
	if err := t.artifacts.AddReviewComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("add line comment: %w", err)
	}

	success := true
	return &tools.ToolOutput{Content: fmt.Sprintf("Added %s comment on %s:%d-%d", severity, filePath, startLine, endLine), Success: &success}, nil
}

// AddFileCommentTool attaches a comment to an entire file in the diff under
// review, for feedback that isn't anchored to one line range.
type AddFileCommentTool struct {
	artifacts repository.ArtifactRepository
}

// NewAddFileCommentTool creates an add_file_comment tool handler.
func NewAddFileCommentTool(artifacts repository.ArtifactRepository) *AddFileCommentTool {
	return &AddFileCommentTool{artifacts: artifacts}
}

func (t *AddFileCommentTool) Name() string              { return "add_file_comment" }
func (t *AddFileCommentTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *AddFileCommentTool) IsMutating(*tools.ToolInvocation) bool { return true }

func (t *AddFileCommentTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	filePath, ok := invocation.Arguments["filePath"].(string)
	if !ok || filePath == "" {
		return nil, tools.NewValidationError("missing required argument: filePath")
	}
	body, ok := invocation.Arguments["body"].(string)
	if !ok || body == "" {
		return nil, tools.NewValidationError("missing required argument: body")
	}
	severity, err := parseSeverity(invocation.Arguments["severity"])
	if err != nil {
		return nil, err
	}

	card, err := currentReviewCard(ctx, t.artifacts, invocation.WorkflowID)
	if err != nil {
		return nil, err
	}

	comment := &domain.ReviewComment{
		ID:           uuid.NewString(),
		ReviewCardID: card.ID,
		Target:       domain.CommentFile,
		FilePath:     filePath,
		Body:         body,
		Severity:     severity,
		Author:       domain.AuthorAgent,
		CreatedAt:    time.Now().UTC(),
	}
	if err := t.artifacts.AddReviewComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("add file comment: %w", err)
	}

	success := true
	return &tools.ToolOutput{Content: fmt.Sprintf("Added %s comment on %s", severity, filePath), Success: &success}, nil
}

// AddReviewCommentTool attaches a comment to the review as a whole, for
// feedback that spans multiple files.
type AddReviewCommentTool struct {
	artifacts repository.ArtifactRepository
}

// NewAddReviewCommentTool creates an add_review_comment tool handler.
func NewAddReviewCommentTool(artifacts repository.ArtifactRepository) *AddReviewCommentTool {
	return &AddReviewCommentTool{artifacts: artifacts}
}

func (t *AddReviewCommentTool) Name() string              { return "add_review_comment" }
func (t *AddReviewCommentTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *AddReviewCommentTool) IsMutating(*tools.ToolInvocation) bool { return true }

func (t *AddReviewCommentTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	body, ok := invocation.Arguments["body"].(string)
	if !ok || body == "" {
		return nil, tools.NewValidationError("missing required argument: body")
	}
	severity, err := parseSeverity(invocation.Arguments["severity"])
	if err != nil {
		return nil, err
	}

	card, err := currentReviewCard(ctx, t.artifacts, invocation.WorkflowID)
	if err != nil {
		return nil, err
	}

	comment := &domain.ReviewComment{
		ID:           uuid.NewString(),
		ReviewCardID: card.ID,
		Target:       domain.CommentReview,
		Body:         body,
		Severity:     severity,
		Author:       domain.AuthorAgent,
		CreatedAt:    time.Now().UTC(),
	}
	if err := t.artifacts.AddReviewComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("add review comment: %w", err)
	}

	success := true
	return &tools.ToolOutput{Content: fmt.Sprintf("Added %s review comment", severity), Success: &success}, nil
}

// CompleteReviewTool finalizes the review card with a recommendation and,
// for approve, a suggested commit message. complete_review is a block tool:
// the agent runner ends the turn on it without dispatching it, and
// cmd/server does not register this handler; the workflow orchestrator's
// persistArtifact records the recommendation itself.
type CompleteReviewTool struct {
	artifacts repository.ArtifactRepository
}

// NewCompleteReviewTool creates a complete_review tool handler.
func NewCompleteReviewTool(artifacts repository.ArtifactRepository) *CompleteReviewTool {
	return &CompleteReviewTool{artifacts: artifacts}
}

func (t *CompleteReviewTool) Name() string              { return "complete_review" }
func (t *CompleteReviewTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *CompleteReviewTool) IsMutating(*tools.ToolInvocation) bool { return true }

func (t *CompleteReviewTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	recArg, _ := invocation.Arguments["recommendation"].(string)
	rec := domain.ReviewRecommendation(recArg)
	switch rec {
	case domain.RecommendApprove, domain.RecommendDeny, domain.RecommendManualReview:
	default:
		return nil, tools.NewValidationError("recommendation must be \"approve\", \"deny\", or \"manual_review\"")
	}

	commitMessage, _ := invocation.Arguments["commitMessage"].(string)
	if rec == domain.RecommendApprove && commitMessage == "" {
		return nil, tools.NewValidationError("commitMessage is required when recommendation is \"approve\"")
	}

	card, err := currentReviewCard(ctx, t.artifacts, invocation.WorkflowID)
	if err != nil {
		return nil, err
	}

	if err := t.artifacts.SetReviewCardRecommendation(ctx, card.ID, rec, commitMessage); err != nil {
		return nil, fmt.Errorf("set review recommendation: %w", err)
	}

	success := true
	return &tools.ToolOutput{Content: fmt.Sprintf("Review complete: %s", rec), Success: &success}, nil
}

func intFromArg(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
