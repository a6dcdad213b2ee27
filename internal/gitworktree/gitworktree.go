// Package gitworktree shells out to a real git binary to create, merge, and
// clean up the isolated worktrees that pulsing sessions run inside.
//
// Grounded on internal/exec's output-capping helpers and the os/exec
// invocation style already used by the shell tool handler.
package gitworktree

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forgepulse/agentflow/internal/apperror"
	execpkg "github.com/forgepulse/agentflow/internal/exec"
)

// MergeStrategy is one of the literal merge strategies the review stage can
// request when finalizing a workflow.
type MergeStrategy string

const (
	StrategyFastForward MergeStrategy = "fast-forward"
	StrategySquash      MergeStrategy = "squash"
	StrategyMergeCommit MergeStrategy = "merge-commit"
	StrategyRebase      MergeStrategy = "rebase"
)

// MergeResult is the outcome of mergeWorkflowBranch. A false Success without
// an error is a legitimate git outcome (e.g. nothing to merge), not a fault.
type MergeResult struct {
	Success   bool
	CommitSHA string
}

// Service shells out to git to manage one worktree per workflow.
//
// Worktree path and branch name are both derived deterministically from the
// workflow ID, per spec: <worktreeRoot>/<workflowID> and
// <branchPrefix>/<workflowID>.
type Service struct {
	worktreeRoot string
	branchPrefix string
}

// New creates a git worktree service rooted at worktreeRoot, naming workflow
// branches with branchPrefix (e.g. "agentflow").
func New(worktreeRoot, branchPrefix string) *Service {
	return &Service{worktreeRoot: worktreeRoot, branchPrefix: branchPrefix}
}

// GetWorktreePath returns the stable, deterministic worktree path for a
// workflow. It does not create anything.
func (s *Service) GetWorktreePath(workflowID string) string {
	return filepath.Join(s.worktreeRoot, workflowID)
}

// GetWorkflowBranch returns the stable, deterministic branch name for a
// workflow.
func (s *Service) GetWorkflowBranch(workflowID string) string {
	return fmt.Sprintf("%s/%s", s.branchPrefix, workflowID)
}

// FindRepoRoot walks up from cwd to find the enclosing git repository root.
func FindRepoRoot(ctx context.Context, cwd string) (string, error) {
	out, err := run(ctx, cwd, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "find repo root", err)
	}
	return strings.TrimSpace(out), nil
}

// InitializeWorktree creates the workflow's branch off baseBranch (if the
// branch doesn't already exist) and adds a worktree for it, returning the
// worktree path. Safe to call again for a workflow whose worktree already
// exists; it is left untouched.
func (s *Service) InitializeWorktree(ctx context.Context, repoRoot, workflowID, baseBranch string) (string, error) {
	worktreePath := s.GetWorktreePath(workflowID)
	branch := s.GetWorkflowBranch(workflowID)

	if _, err := os.Stat(worktreePath); err == nil {
		return worktreePath, nil
	}

	if err := os.MkdirAll(s.worktreeRoot, 0o755); err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "create worktree root", err)
	}

	if branchExists(ctx, repoRoot, branch) {
		if _, err := run(ctx, repoRoot, "worktree", "add", worktreePath, branch); err != nil {
			return "", apperror.Wrap(apperror.KindInternal, "add worktree for existing branch", err)
		}
		return worktreePath, nil
	}

	if _, err := run(ctx, repoRoot, "worktree", "add", "-b", branch, worktreePath, baseBranch); err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "add worktree", err)
	}
	return worktreePath, nil
}

// CheckoutInWorktree resets worktreePath to branch, discarding whatever
// state it was left in. Used both for initial setup and to restore the
// worktree after a failed merge.
func (s *Service) CheckoutInWorktree(ctx context.Context, worktreePath, branch string) error {
	if _, err := run(ctx, worktreePath, "checkout", branch); err != nil {
		return apperror.Wrap(apperror.KindInternal, fmt.Sprintf("checkout %s in worktree", branch), err)
	}
	return nil
}

// GetCurrentBranch returns the branch checked out at path.
func GetCurrentBranch(ctx context.Context, path string) (string, error) {
	out, err := run(ctx, path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "get current branch", err)
	}
	return strings.TrimSpace(out), nil
}

// GetDiff returns the unified diff between baseBranch and path's current
// working tree (including uncommitted changes), in standard
// `diff --git a/... b/...` format.
func GetDiff(ctx context.Context, path, baseBranch string) (string, error) {
	out, err := run(ctx, path, "diff", baseBranch, "--")
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "get diff", err)
	}
	return out, nil
}

// MergeWorkflowBranch merges workflowBranch into baseBranch in repoRoot
// using strategy. fast-forward ignores commitMessage; every other strategy
// requires one.
//
// A merge conflict or other git failure is returned as an error (the
// caller is expected to call CheckoutInWorktree to restore the worktree and
// re-raise per spec). A squash merge whose commit step fails (e.g. nothing
// to commit) is reported as {Success: false} with no error, as is a failure
// to read the resulting HEAD.
func (s *Service) MergeWorkflowBranch(ctx context.Context, repoRoot, workflowBranch, baseBranch string, strategy MergeStrategy, commitMessage string) (*MergeResult, error) {
	if strategy != StrategyFastForward && commitMessage == "" {
		return nil, apperror.New(apperror.KindValidation, fmt.Sprintf("merge strategy %q requires a commit message", strategy))
	}

	if _, err := run(ctx, repoRoot, "checkout", baseBranch); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "checkout base branch", err)
	}

	switch strategy {
	case StrategyFastForward:
		if _, err := run(ctx, repoRoot, "merge", "--ff-only", workflowBranch); err != nil {
			return nil, apperror.Wrap(apperror.KindConflict, "fast-forward merge", err)
		}
	case StrategySquash:
		if _, err := run(ctx, repoRoot, "merge", "--squash", workflowBranch); err != nil {
			return nil, apperror.Wrap(apperror.KindConflict, "squash merge", err)
		}
		if _, err := run(ctx, repoRoot, "commit", "-m", commitMessage); err != nil {
			return &MergeResult{Success: false}, nil
		}
	case StrategyMergeCommit:
		if _, err := run(ctx, repoRoot, "merge", "--no-ff", "-m", commitMessage, workflowBranch); err != nil {
			return nil, apperror.Wrap(apperror.KindConflict, "merge commit", err)
		}
	case StrategyRebase:
		if _, err := run(ctx, repoRoot, "rebase", baseBranch, workflowBranch); err != nil {
			return nil, apperror.Wrap(apperror.KindConflict, "rebase onto base branch", err)
		}
		if _, err := run(ctx, repoRoot, "merge", "--ff-only", workflowBranch); err != nil {
			return nil, apperror.Wrap(apperror.KindConflict, "fast-forward after rebase", err)
		}
	default:
		return nil, apperror.New(apperror.KindValidation, fmt.Sprintf("unknown merge strategy %q", strategy))
	}

	sha, err := run(ctx, repoRoot, "rev-parse", "HEAD")
	if err != nil {
		return &MergeResult{Success: false}, nil
	}
	return &MergeResult{Success: true, CommitSHA: strings.TrimSpace(sha)}, nil
}

// CleanupWorkflow removes the worktree and deletes the workflow branch.
// Safe to call on a workflow that was never initialized.
func (s *Service) CleanupWorkflow(ctx context.Context, repoRoot, workflowID string) error {
	worktreePath := s.GetWorktreePath(workflowID)
	branch := s.GetWorkflowBranch(workflowID)

	if _, err := os.Stat(worktreePath); err == nil {
		if _, err := run(ctx, repoRoot, "worktree", "remove", "--force", worktreePath); err != nil {
			return apperror.Wrap(apperror.KindInternal, "remove worktree", err)
		}
	}
	if branchExists(ctx, repoRoot, branch) {
		if _, err := run(ctx, repoRoot, "branch", "-D", branch); err != nil {
			return apperror.Wrap(apperror.KindInternal, "delete workflow branch", err)
		}
	}
	return nil
}

func branchExists(ctx context.Context, repoRoot, branch string) bool {
	_, err := run(ctx, repoRoot, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		combined := execpkg.AggregateOutput(stdout.Bytes(), stderr.Bytes())
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(combined)))
	}
	return stdout.String(), nil
}
