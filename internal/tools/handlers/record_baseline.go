package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/repository"
	"github.com/forgepulse/agentflow/internal/tools"
)

// RecordBaselineTool records a pre-existing build/lint/test diagnostic
// during preflight so later pulse verifications can ignore it instead of
// blaming the agent's own change for it.
type RecordBaselineTool struct {
	pulses repository.PulseRepository
}

// NewRecordBaselineTool creates a record_baseline tool handler.
func NewRecordBaselineTool(pulses repository.PulseRepository) *RecordBaselineTool {
	return &RecordBaselineTool{pulses: pulses}
}

func (t *RecordBaselineTool) Name() string              { return "record_baseline" }
func (t *RecordBaselineTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *RecordBaselineTool) IsMutating(*tools.ToolInvocation) bool { return true }

func (t *RecordBaselineTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	issueTypeArg, _ := invocation.Arguments["issueType"].(string)
	issueType := domain.BaselineIssueType(issueTypeArg)
	if issueType != domain.IssueError && issueType != domain.IssueWarning {
		return nil, tools.NewValidationError("issueType must be \"error\" or \"warning\"")
	}

	sourceArg, _ := invocation.Arguments["source"].(string)
	source := domain.BaselineSource(sourceArg)
	if source != domain.SourceBuild && source != domain.SourceLint && source != domain.SourceTest {
		return nil, tools.NewValidationError("source must be \"build\", \"lint\", or \"test\"")
	}

	pattern, ok := invocation.Arguments["pattern"].(string)
	if !ok || pattern == "" {
		return nil, tools.NewValidationError("missing required argument: pattern")
	}

	filePath, _ := invocation.Arguments["filePath"].(string)
	description, _ := invocation.Arguments["description"].(string)

	baseline := &domain.Baseline{
		ID:          uuid.NewString(),
		WorkflowID:  invocation.WorkflowID,
		IssueType:   issueType,
		Source:      source,
		Pattern:     pattern,
		FilePath:    filePath,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	if err := t.pulses.RecordBaseline(ctx, baseline); err != nil {
		return nil, fmt.Errorf("record baseline: %w", err)
	}

	success := true
	return &tools.ToolOutput{
		Content: fmt.Sprintf("Recorded %s baseline from %s: %s", issueType, source, pattern),
		Success: &success,
	}, nil
}
