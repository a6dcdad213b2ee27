package handlers

import (
	"path/filepath"
	"strings"

	"github.com/forgepulse/agentflow/internal/tools"
)

// resolveSafePath rejects absolute paths and ".." traversal, then resolves
// path relative to the invocation's worktree (or project root if no
// worktree is set). Every mutating tool contract requires this.
func resolveSafePath(invocation *tools.ToolInvocation, path string) (string, error) {
	if path == "" {
		return "", tools.NewValidationError("path cannot be empty")
	}
	if filepath.IsAbs(path) {
		return "", tools.NewValidationError("path must be relative: " + path)
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "..\\") {
		return "", tools.NewValidationError("path may not traverse outside the project root: " + path)
	}
	return filepath.Join(invocation.CwdRoot(), clean), nil
}
