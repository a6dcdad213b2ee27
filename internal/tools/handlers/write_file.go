package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgepulse/agentflow/internal/posthooks"
	"github.com/forgepulse/agentflow/internal/tools"
)

// WriteFileTool creates or overwrites a file, running post-write hooks on
// success and rolling back on a blocking hook failure.
type WriteFileTool struct {
	Hooks []posthooks.Hook
}

// NewWriteFileTool creates a write_file tool handler.
func NewWriteFileTool(hooks []posthooks.Hook) *WriteFileTool {
	return &WriteFileTool{Hooks: hooks}
}

func (t *WriteFileTool) Name() string              { return "write_file" }
func (t *WriteFileTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *WriteFileTool) IsMutating(*tools.ToolInvocation) bool { return true }

func (t *WriteFileTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	relPath, ok := invocation.Arguments["path"].(string)
	if !ok || relPath == "" {
		return nil, tools.NewValidationError("missing required argument: path")
	}
	content, ok := invocation.Arguments["content"].(string)
	if !ok {
		return nil, tools.NewValidationError("content must be a string")
	}

	absPath, err := resolveSafePath(invocation, relPath)
	if err != nil {
		return nil, err
	}

	var previous []byte
	existed := false
	if prev, statErr := os.ReadFile(absPath); statErr == nil {
		previous = prev
		existed = true
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(absPath, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	result := posthooks.Run(ctx, t.Hooks, relPath, absPath)
	if result.Blocked {
		if existed {
			_ = os.WriteFile(absPath, previous, 0o644)
		} else {
			_ = os.Remove(absPath)
		}
		success := false
		return &tools.ToolOutput{
			Content: fmt.Sprintf("Hook failed (blocking), file reverted: %s", result.Reason),
			Success: &success,
		}, nil
	}

	content2 := fmt.Sprintf("Wrote %d bytes to %s", len(content), relPath)
	if result.Warning != "" {
		content2 += "\nWarning: " + result.Warning
	}
	success := true
	return &tools.ToolOutput{Content: content2, Success: &success}, nil
}
