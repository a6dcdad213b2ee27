package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/repository/memory"
	"github.com/forgepulse/agentflow/internal/tools"
)

func TestRecordBaseline_ToolMetadata(t *testing.T) {
	tool := NewRecordBaselineTool(memory.NewPulseStore())
	assert.Equal(t, "record_baseline", tool.Name())
	assert.True(t, tool.IsMutating(nil))
}

func TestRecordBaseline_RecordsAndMatches(t *testing.T) {
	store := memory.NewPulseStore()
	tool := NewRecordBaselineTool(store)
	inv := &tools.ToolInvocation{
		WorkflowID: "wf-1",
		Arguments: map[string]interface{}{
			"issueType": "warning",
			"source":    "lint",
			"pattern":   "unused variable 'x'",
			"filePath":  "main.go",
		},
	}

	out, err := tool.Handle(context.Background(), inv)
	require.NoError(t, err)
	assert.True(t, *out.Success)

	matched, err := store.MatchesBaseline(context.Background(), "wf-1", domain.IssueWarning, domain.SourceLint, "unused variable 'x'", "main.go")
	require.NoError(t, err)
	assert.True(t, matched)

	count, err := store.CountBaselines(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordBaseline_InvalidIssueType(t *testing.T) {
	tool := NewRecordBaselineTool(memory.NewPulseStore())
	_, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"issueType": "bogus", "source": "build", "pattern": "x"},
	})
	require.Error(t, err)
	assert.True(t, tools.IsValidationError(err))
}

func TestRecordBaseline_InvalidSource(t *testing.T) {
	tool := NewRecordBaselineTool(memory.NewPulseStore())
	_, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"issueType": "error", "source": "bogus", "pattern": "x"},
	})
	require.Error(t, err)
	assert.True(t, tools.IsValidationError(err))
}

func TestRecordBaseline_MissingPattern(t *testing.T) {
	tool := NewRecordBaselineTool(memory.NewPulseStore())
	_, err := tool.Handle(context.Background(), &tools.ToolInvocation{
		Arguments: map[string]interface{}{"issueType": "error", "source": "build"},
	})
	require.Error(t, err)
	assert.True(t, tools.IsValidationError(err))
}
