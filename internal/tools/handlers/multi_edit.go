package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/forgepulse/agentflow/internal/posthooks"
	"github.com/forgepulse/agentflow/internal/tools"
)

// MultiEditTool applies an ordered list of exact-match edits to one file as
// a single all-or-nothing operation, with rollback on a blocking post-write
// hook failure.
type MultiEditTool struct {
	Hooks []posthooks.Hook
}

// NewMultiEditTool creates a multi_edit tool handler.
func NewMultiEditTool(hooks []posthooks.Hook) *MultiEditTool {
	return &MultiEditTool{Hooks: hooks}
}

func (t *MultiEditTool) Name() string              { return "multi_edit" }
func (t *MultiEditTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *MultiEditTool) IsMutating(*tools.ToolInvocation) bool { return true }

type editSpec struct {
	OldString  string
	NewString  string
	ReplaceAll bool
}

type editedRange struct {
	start, end int // 1-indexed, inclusive
}

func (t *MultiEditTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	relPath, ok := invocation.Arguments["path"].(string)
	if !ok || relPath == "" {
		return nil, tools.NewValidationError("missing required argument: path")
	}
	rawEdits, ok := invocation.Arguments["edits"].([]interface{})
	if !ok || len(rawEdits) == 0 {
		return nil, tools.NewValidationError("edits must be a non-empty array")
	}

	edits := make([]editSpec, 0, len(rawEdits))
	for i, re := range rawEdits {
		m, ok := re.(map[string]interface{})
		if !ok {
			return nil, tools.NewValidationErrorf("edits[%d] must be an object", i)
		}
		oldString, ok := m["oldString"].(string)
		if !ok {
			return nil, tools.NewValidationErrorf("edits[%d].oldString must be a string", i)
		}
		newString, _ := m["newString"].(string)
		replaceAll, _ := m["replaceAll"].(bool)
		edits = append(edits, editSpec{OldString: oldString, NewString: newString, ReplaceAll: replaceAll})
	}

	absPath, err := resolveSafePath(invocation, relPath)
	if err != nil {
		return nil, err
	}

	original, err := os.ReadFile(absPath)
	if err != nil {
		success := false
		return &tools.ToolOutput{Content: fmt.Sprintf("failed to read file: %v", err), Success: &success}, nil
	}

	// All-or-nothing validation on a simulated in-memory buffer before any
	// disk write.
	buf := string(original)
	var ranges []editedRange
	for i, e := range edits {
		count := strings.Count(buf, e.OldString)
		if count == 0 {
			success := false
			return &tools.ToolOutput{
				Content: fmt.Sprintf("edits[%d]: oldString not found; no changes made", i),
				Success: &success,
			}, nil
		}
		if count > 1 && !e.ReplaceAll {
			success := false
			return &tools.ToolOutput{
				Content: fmt.Sprintf("edits[%d]: oldString occurs %d times; set replaceAll or narrow the match; no changes made", i, count),
				Success: &success,
			}, nil
		}

		firstIdx := strings.Index(buf, e.OldString)
		startLine := strings.Count(buf[:firstIdx], "\n") + 1
		if e.ReplaceAll {
			buf = strings.ReplaceAll(buf, e.OldString, e.NewString)
		} else {
			buf = strings.Replace(buf, e.OldString, e.NewString, 1)
		}
		endLine := startLine + strings.Count(e.NewString, "\n")
		ranges = append(ranges, editedRange{start: startLine, end: endLine})
	}

	if err := os.WriteFile(absPath, []byte(buf), 0o644); err != nil {
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

	snippets := renderSnippets(buf, mergeRanges(ranges))
	out := fmt.Sprintf("Applied %d edit(s) to %s\n%s", len(edits), relPath, snippets)
	if isTypeScript(relPath) {
		out += "\n(type-checking diagnostics not available in this environment)"
	}
	if result.Warning != "" {
		out += "\nWarning: " + result.Warning
	}
	success := true
	return &tools.ToolOutput{Content: out, Success: &success}, nil
}

// mergeRanges sorts and merges ranges whose gap is 10 lines or fewer, each
// padded by 5 lines of context, matching the ±5-line / merge-when-≤10-gap
// contract.
func mergeRanges(ranges []editedRange) []editedRange {
	if len(ranges) == 0 {
		return nil
	}
	padded := make([]editedRange, len(ranges))
	for i, r := range ranges {
		padded[i] = editedRange{start: r.start - 5, end: r.end + 5}
	}
	sort.Slice(padded, func(i, j int) bool { return padded[i].start < padded[j].start })

	merged := []editedRange{padded[0]}
	for _, r := range padded[1:] {
		last := &merged[len(merged)-1]
		if r.start-last.end <= 10 {
			if r.end > last.end {
				last.end = r.end
			}
		} else {
			merged = append(merged, r)
		}
	}
	return merged
}

func renderSnippets(content string, ranges []editedRange) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for _, r := range ranges {
		start := r.start
		if start < 1 {
			start = 1
		}
		end := r.end
		if end > len(lines) {
			end = len(lines)
		}
		for i := start; i <= end; i++ {
			b.WriteString(strconv.Itoa(i))
			b.WriteString("\t")
			b.WriteString(lines[i-1])
			b.WriteString("\n")
		}
		b.WriteString("---\n")
	}
	return b.String()
}

func isTypeScript(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".ts" || ext == ".tsx"
}
