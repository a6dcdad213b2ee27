// Package handlers contains built-in tool handler implementations.
package handlers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/forgepulse/agentflow/internal/apperror"
	"github.com/forgepulse/agentflow/internal/command_safety"
	execpkg "github.com/forgepulse/agentflow/internal/exec"
	"github.com/forgepulse/agentflow/internal/execenv"
	"github.com/forgepulse/agentflow/internal/execpolicy"
	"github.com/forgepulse/agentflow/internal/execsession"
	"github.com/forgepulse/agentflow/internal/eventbus"
	"github.com/forgepulse/agentflow/internal/sandbox"
	"github.com/forgepulse/agentflow/internal/shellapproval"
	"github.com/forgepulse/agentflow/internal/tools"
)

const defaultApprovalMode = "unless-trusted"

// backgroundCollectWindow bounds how long a background-started command is
// watched before the tool call returns with whatever output has arrived so
// far, leaving the session open for a follow-up call keyed by session_id.
const backgroundCollectWindow = 3 * time.Second

// ShellTool executes shell commands inside a pulse's worktree, gated by the
// shell approval service when the command isn't already remembered for the
// workflow. Commands run with background=true are started in a PTY-backed
// execsession instead of blocking, so long-lived or interactive processes
// (dev servers, REPLs) can be polled and fed stdin across tool calls.
type ShellTool struct {
	sandboxMgr sandbox.SandboxManager
	policy     *execpolicy.ExecPolicyManager
	approvals  *shellapproval.Service
	bus        *eventbus.Bus
	sessions   *execsession.Store
}

// NewShellTool creates a shell tool handler wired to the shell approval
// service and exec policy manager.
func NewShellTool(policy *execpolicy.ExecPolicyManager, approvals *shellapproval.Service, bus *eventbus.Bus) *ShellTool {
	return &ShellTool{
		sandboxMgr: sandbox.NewNoopSandboxManager(),
		policy:     policy,
		approvals:  approvals,
		bus:        bus,
		sessions:   execsession.NewStore(),
	}
}

// NewShellToolWithSandbox is NewShellTool with an explicit sandbox manager.
func NewShellToolWithSandbox(policy *execpolicy.ExecPolicyManager, approvals *shellapproval.Service, bus *eventbus.Bus, mgr sandbox.SandboxManager) *ShellTool {
	t := NewShellTool(policy, approvals, bus)
	t.sandboxMgr = mgr
	return t
}

// Name returns the tool's name.
func (t *ShellTool) Name() string { return "shell" }

// Kind returns ToolKindFunction.
func (t *ShellTool) Kind() tools.ToolKind { return tools.ToolKindFunction }

// IsMutating returns true unless the command is known to be read-only.
func (t *ShellTool) IsMutating(invocation *tools.ToolInvocation) bool {
	commandArg, ok := invocation.Arguments["command"]
	if !ok {
		return true
	}
	command, ok := commandArg.(string)
	if !ok || command == "" {
		return true
	}
	return !command_safety.IsKnownSafeCommand([]string{"bash", "-c", command})
}

// Handle executes a shell command, blocking on shell approval when required.
func (t *ShellTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	commandArg, ok := invocation.Arguments["command"]
	if !ok {
		return nil, tools.NewValidationError("missing required argument: command")
	}
	command, ok := commandArg.(string)
	if !ok || command == "" {
		return nil, tools.NewValidationError("command must be a non-empty string")
	}

	if invocation.WorkflowID != "" && t.approvals != nil {
		if denied, reason := t.checkApproval(ctx, invocation, command); denied {
			success := false
			return &tools.ToolOutput{Content: "Command denied: " + reason, Success: &success}, nil
		} else if reason != "" {
			// Approval request failed (e.g. the context was cancelled while waiting).
			success := false
			return &tools.ToolOutput{Content: reason, Success: &success}, nil
		}
	}

	timeoutMs := int64(60_000)
	if v, ok := invocation.Arguments["timeout_ms"]; ok {
		switch n := v.(type) {
		case float64:
			timeoutMs = int64(n)
		case int:
			timeoutMs = int64(n)
		}
	}
	if timeoutMs > 300_000 {
		timeoutMs = 300_000
	}

	workdir := invocation.CwdRoot()
	if v, ok := invocation.Arguments["workdir"].(string); ok && v != "" {
		workdir = v
	}

	if sessionID, ok := invocation.Arguments["session_id"].(string); ok && sessionID != "" {
		return t.handleSessionTurn(sessionID, invocation, timeoutMs)
	}
	if background, ok := invocation.Arguments["background"].(bool); ok && background {
		return t.startBackgroundSession(command, workdir)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	spec := sandbox.CommandSpec{Program: "bash", Args: []string{"-c", command}, Cwd: workdir}
	execEnv, err := t.resolveExecEnv(spec, invocation.SandboxPolicy)
	if err != nil {
		return nil, tools.NewValidationError("sandbox setup failed: " + err.Error())
	}

	cmd := exec.CommandContext(runCtx, execEnv.Command[0], execEnv.Command[1:]...)
	if execEnv.Cwd != "" {
		cmd.Dir = execEnv.Cwd
	}
	if invocation.EnvPolicy != nil {
		cmd.Env = execenv.EnvMapToSlice(resolveFilteredEnv(invocation.EnvPolicy))
	}
	if len(execEnv.Env) > 0 {
		if cmd.Env == nil {
			cmd.Env = os.Environ()
		}
		cmd.Env = appendEnvMap(cmd.Env, execEnv.Env)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()
	output := execpkg.AggregateOutput(stdoutBuf.Bytes(), stderrBuf.Bytes())
	output = execpkg.HeadTail(output, execpkg.DefaultShellOutputBytes)

	exitCode := 0
	if runErr != nil && runCtx.Err() != nil {
		success := false
		return &tools.ToolOutput{Content: fmt.Sprintf("command timed out after %dms", timeoutMs), Success: &success}, nil
	} else if exitErr, ok := runErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if runErr != nil {
		return nil, fmt.Errorf("run shell command: %w", runErr)
	}

	content := fmt.Sprintf("exit code: %d\n%s", exitCode, output)
	success := exitCode == 0
	return &tools.ToolOutput{Content: content, Success: &success}, nil
}

// startBackgroundSession starts command under a PTY and watches it for
// backgroundCollectWindow before returning, leaving the session in the store
// for a follow-up call keyed by the returned session_id.
func (t *ShellTool) startBackgroundSession(command, workdir string) (*tools.ToolOutput, error) {
	sess, err := execsession.StartSession(execsession.SessionOpts{
		ProcessID: uuid.NewString(),
		Command:   []string{"bash", "-c", command},
		Cwd:       workdir,
		TTY:       true,
	})
	if err != nil {
		success := false
		return &tools.ToolOutput{Content: "failed to start background command: " + err.Error(), Success: &success}, nil
	}
	t.sessions.Put(sess)

	output := sess.CollectOutput(time.Now().Add(backgroundCollectWindow), nil)
	return &tools.ToolOutput{Content: sessionStatusContent(sess, output), Success: nil}, nil
}

// handleSessionTurn writes optional stdin to a previously backgrounded
// session and collects output up to timeoutMs, removing the session from the
// store once the process has exited.
func (t *ShellTool) handleSessionTurn(sessionID string, invocation *tools.ToolInvocation, timeoutMs int64) (*tools.ToolOutput, error) {
	sess, ok := t.sessions.Get(sessionID)
	if !ok {
		success := false
		return &tools.ToolOutput{Content: "no background session with id " + sessionID, Success: &success}, nil
	}

	if stdin, ok := invocation.Arguments["stdin"].(string); ok && stdin != "" {
		if err := sess.WriteStdin([]byte(stdin)); err != nil {
			success := false
			return &tools.ToolOutput{Content: "failed to write stdin: " + err.Error(), Success: &success}, nil
		}
	}

	output := sess.CollectOutput(time.Now().Add(time.Duration(timeoutMs)*time.Millisecond), nil)
	content := sessionStatusContent(sess, output)
	if sess.HasExited() {
		t.sessions.Remove(sessionID)
	}
	return &tools.ToolOutput{Content: content, Success: nil}, nil
}

// sessionStatusContent renders a background session's current output along
// with its id (for follow-up calls) and exit status.
func sessionStatusContent(sess *execsession.ExecSession, output []byte) string {
	trimmed := execpkg.HeadTail(string(output), execpkg.DefaultShellOutputBytes)
	if code := sess.ExitCode(); code != nil {
		return fmt.Sprintf("session %s exited with code %d\n%s", sess.ProcessID, *code, trimmed)
	}
	return fmt.Sprintf("session %s still running, use session_id to continue polling or write stdin\n%s", sess.ProcessID, trimmed)
}

// checkApproval returns (denied, reason). reason is non-empty when denied is
// true (the deny reason) or when the approval flow itself errored.
func (t *ShellTool) checkApproval(ctx context.Context, invocation *tools.ToolInvocation, command string) (bool, string) {
	if t.approvals.IsCommandRemembered(invocation.WorkflowID, command) {
		return false, ""
	}

	requirement := tools.ApprovalNeeded
	if t.policy != nil {
		requirement = t.policy.EvaluateShellCommand(command, defaultApprovalMode)
	}
	switch requirement {
	case tools.ApprovalSkip:
		return false, ""
	case tools.ApprovalForbidden:
		return true, "command is forbidden by exec policy"
	}

	req := shellapproval.Request{
		WorkflowID: invocation.WorkflowID,
		SessionID:  invocation.SessionID,
		TurnID:     invocation.TurnID,
		ToolCallID: invocation.CallID,
		Command:    command,
		Reason:     "shell tool invocation requires approval",
	}
	if t.bus != nil {
		t.bus.Broadcast(eventbus.Event{Type: eventbus.EventShellApprovalRequested, Payload: req})
	}

	decision, err := t.approvals.RequestApproval(ctx, req)
	if t.bus != nil {
		t.bus.Broadcast(eventbus.Event{Type: eventbus.EventShellApprovalResolved, Payload: decision})
	}
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return false, "approval request could not be tracked"
		}
		return false, err.Error()
	}
	if !decision.Approved {
		reason := decision.DenyReason
		if reason == "" {
			reason = "denied by user"
		}
		return true, reason
	}
	return false, ""
}

// resolveExecEnv applies sandbox wrapping if a policy is set.
func (t *ShellTool) resolveExecEnv(spec sandbox.CommandSpec, policyRef *tools.SandboxPolicyRef) (*sandbox.ExecEnv, error) {
	if policyRef == nil || t.sandboxMgr == nil {
		return &sandbox.ExecEnv{
			Command: append([]string{spec.Program}, spec.Args...),
			Cwd:     spec.Cwd,
		}, nil
	}
	policy := sandboxPolicyRefToPolicy(policyRef)
	return t.sandboxMgr.Transform(spec, policy)
}

func sandboxPolicyRefToPolicy(ref *tools.SandboxPolicyRef) *sandbox.SandboxPolicy {
	if ref == nil {
		return nil
	}
	roots := make([]sandbox.WritableRoot, len(ref.WritableRoots))
	for i, r := range ref.WritableRoots {
		roots[i] = sandbox.WritableRoot(r)
	}
	return &sandbox.SandboxPolicy{
		Mode:          sandbox.SandboxMode(ref.Mode),
		WritableRoots: roots,
		NetworkAccess: ref.NetworkAccess,
	}
}

func resolveFilteredEnv(ref *tools.EnvPolicyRef) map[string]string {
	if ref == nil {
		return nil
	}
	policy := &execenv.ShellEnvironmentPolicy{
		Inherit:               execenv.Inherit(ref.Inherit),
		IgnoreDefaultExcludes: ref.IgnoreDefaultExcludes,
		Exclude:               ref.Exclude,
		Set:                   ref.Set,
		IncludeOnly:           ref.IncludeOnly,
	}
	return execenv.CreateEnv(policy)
}

func appendEnvMap(base []string, envMap map[string]string) []string {
	for k, v := range envMap {
		base = append(base, k+"="+v)
	}
	return base
}
