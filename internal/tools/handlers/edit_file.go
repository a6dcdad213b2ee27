package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/forgepulse/agentflow/internal/posthooks"
	"github.com/forgepulse/agentflow/internal/tools"
)

// EditFileTool performs an exact-match string replacement in a file. No
// fuzzy matching: oldString must appear exactly once unless replaceAll.
type EditFileTool struct {
	Hooks []posthooks.Hook
}

// NewEditFileTool creates an edit_file tool handler.
func NewEditFileTool(hooks []posthooks.Hook) *EditFileTool {
	return &EditFileTool{Hooks: hooks}
}

func (t *EditFileTool) Name() string              { return "edit_file" }
func (t *EditFileTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *EditFileTool) IsMutating(*tools.ToolInvocation) bool { return true }

func (t *EditFileTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	relPath, ok := invocation.Arguments["path"].(string)
	if !ok || relPath == "" {
		return nil, tools.NewValidationError("missing required argument: path")
	}
	oldString, ok := invocation.Arguments["oldString"].(string)
	if !ok {
		return nil, tools.NewValidationError("oldString must be a string")
	}
	newString, _ := invocation.Arguments["newString"].(string)
	replaceAll, _ := invocation.Arguments["replaceAll"].(bool)

	absPath, err := resolveSafePath(invocation, relPath)
	if err != nil {
		return nil, err
	}

	original, err := os.ReadFile(absPath)
	if err != nil {
		success := false
		return &tools.ToolOutput{Content: fmt.Sprintf("failed to read file: %v", err), Success: &success}, nil
	}
	content := string(original)

	count := strings.Count(content, oldString)
	if count == 0 {
		success := false
		return &tools.ToolOutput{Content: "oldString not found in file; no changes made", Success: &success}, nil
	}
	if count > 1 && !replaceAll {
		success := false
		return &tools.ToolOutput{
			Content: fmt.Sprintf("oldString occurs %d times; set replaceAll to replace every occurrence, or narrow the match", count),
			Success: &success,
		}, nil
	}

	var updated string
	if replaceAll {
		updated = strings.ReplaceAll(content, oldString, newString)
	} else {
		updated = strings.Replace(content, oldString, newString, 1)
	}

	if err := os.WriteFile(absPath, []byte(updated), 0o644); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	result := posthooks.Run(ctx, t.Hooks, relPath, absPath)
	if result.Blocked {
		_ = os.WriteFile(absPath, original, 0o644)
		success := false
		return &tools.ToolOutput{
			Content: fmt.Sprintf("Hook failed (blocking), file reverted: %s", result.Reason),
			Success: &success,
		}, nil
	}

	replaced := count
	if !replaceAll {
		replaced = 1
	}
	out := fmt.Sprintf("Replaced %d occurrence(s) in %s", replaced, relPath)
	if result.Warning != "" {
		out += "\nWarning: " + result.Warning
	}
	success := true
	return &tools.ToolOutput{Content: out, Success: &success}, nil
}
