// Package posthooks runs post-write hooks after mutating tool calls,
// grounded on the placeholder-substitution + glob-matching convention
// mfateev/temporal-agent-harness internal/instructions uses for merging
// AGENTS.md-style configuration, generalized here to shell hook commands.
package posthooks

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// OnFailure selects what happens when a hook's command exits non-zero.
type OnFailure string

const (
	OnFailureBlock OnFailure = "block" // caller must roll back the write
	OnFailureWarn  OnFailure = "warn"  // caller appends a warning, keeps the write
)

// Hook is one configured post-write hook.
type Hook struct {
	Glob      string
	Command   string
	OnFailure OnFailure
}

const hookTimeout = 30 * time.Second

// Result is the outcome of running every hook that matched a path.
type Result struct {
	Blocked bool
	Reason  string
	Warning string
}

// Run selects hooks whose Glob matches relPath and runs each sequentially
// against absPath, substituting %PATH%, %ABSOLUTE_PATH%, %DIRNAME%,
// %FILENAME%. The first onFailure=block hook to fail stops immediately
// (remaining hooks do not run); onFailure=warn hooks keep going and their
// warnings accumulate.
func Run(ctx context.Context, hooks []Hook, relPath, absPath string) Result {
	var warnings []string
	for _, h := range hooks {
		matched, err := filepath.Match(h.Glob, relPath)
		if err != nil || !matched {
			continue
		}
		if err := runOne(ctx, h, relPath, absPath); err != nil {
			if h.OnFailure == OnFailureBlock {
				return Result{Blocked: true, Reason: err.Error()}
			}
			warnings = append(warnings, err.Error())
		}
	}
	return Result{Warning: strings.Join(warnings, "; ")}
}

func runOne(ctx context.Context, h Hook, relPath, absPath string) error {
	cmdText := substitute(h.Command, relPath, absPath)
	runCtx, cancel := context.WithTimeout(ctx, hookTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bash", "-c", cmdText)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return &hookError{cmd: cmdText, output: out.String(), cause: err}
	}
	return nil
}

func substitute(command, relPath, absPath string) string {
	r := strings.NewReplacer(
		"%PATH%", relPath,
		"%ABSOLUTE_PATH%", absPath,
		"%DIRNAME%", filepath.Dir(absPath),
		"%FILENAME%", filepath.Base(absPath),
	)
	return r.Replace(command)
}

type hookError struct {
	cmd    string
	output string
	cause  error
}

func (e *hookError) Error() string {
	return "hook `" + e.cmd + "` failed: " + e.cause.Error() + ": " + strings.TrimSpace(e.output)
}

func (e *hookError) Unwrap() error { return e.cause }
