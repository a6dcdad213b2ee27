package handlers

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgepulse/agentflow/internal/tools"
)

func newGrepInvocation(root string, args map[string]interface{}) *tools.ToolInvocation {
	return &tools.ToolInvocation{
		CallID:      "test-call",
		ToolName:    "grep",
		Arguments:   args,
		ProjectRoot: root,
	}
}

func requireRg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("rg"); err != nil {
		t.Skip("ripgrep not installed")
	}
}

func TestGrep_ToolMetadata(t *testing.T) {
	tool := NewGrepFilesTool()
	assert.Equal(t, "grep", tool.Name())
	assert.Equal(t, tools.ToolKindFunction, tool.Kind())
	assert.False(t, tool.IsMutating(nil))
}

func TestGrep_MissingPattern(t *testing.T) {
	tool := NewGrepFilesTool()
	_, err := tool.Handle(context.Background(), newGrepInvocation(t.TempDir(), map[string]interface{}{}))
	require.Error(t, err)
	assert.True(t, tools.IsValidationError(err))
}

func TestGrep_EmptyPattern(t *testing.T) {
	tool := NewGrepFilesTool()
	_, err := tool.Handle(context.Background(), newGrepInvocation(t.TempDir(), map[string]interface{}{
		"pattern": "   ",
	}))
	require.Error(t, err)
	assert.True(t, tools.IsValidationError(err))
}

func TestGrep_TraversalRejected(t *testing.T) {
	tool := NewGrepFilesTool()
	_, err := tool.Handle(context.Background(), newGrepInvocation(t.TempDir(), map[string]interface{}{
		"pattern": "foo",
		"path":    "../outside",
	}))
	require.Error(t, err)
	assert.True(t, tools.IsValidationError(err))
}

func TestGrep_FindsMatchingFile(t *testing.T) {
	requireRg(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "needle.go"), []byte("func needle() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.go"), []byte("func other() {}\n"), 0o644))

	tool := NewGrepFilesTool()
	out, err := tool.Handle(context.Background(), newGrepInvocation(dir, map[string]interface{}{
		"pattern": "func needle",
	}))
	require.NoError(t, err)
	require.NotNil(t, out.Success)
	assert.True(t, *out.Success)
	assert.Contains(t, out.Content, "needle.go")
	assert.NotContains(t, out.Content, "other.go")
}

func TestGrep_NoMatches(t *testing.T) {
	requireRg(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))

	tool := NewGrepFilesTool()
	out, err := tool.Handle(context.Background(), newGrepInvocation(dir, map[string]interface{}{
		"pattern": "nonexistent_token_xyz",
	}))
	require.NoError(t, err)
	require.NotNil(t, out.Success)
	assert.False(t, *out.Success)
	assert.Contains(t, out.Content, "No matches found")
}
