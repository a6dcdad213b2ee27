// Package shellapproval implements the process-wide shell approval service:
// a workflowId-keyed set of pending future/promise requests that block the
// calling tool goroutine until a human (via the event bus / UI) resolves
// approve or deny, optionally remembering the command for future calls.
//
// Corresponds to: mfateev/temporal-agent-harness internal/workflow's
// Temporal Update-handler suspend/resume pattern (a workflow goroutine
// blocks on a channel until an Update arrives), reimplemented without
// Temporal as a channel-backed Go future since there is no replay history
// to suspend — see DESIGN.md for why Temporal was dropped.
package shellapproval

import (
	"context"
	"fmt"
	"sync"

	"github.com/forgepulse/agentflow/internal/apperror"
)

// Decision is the resolution of a pending approval request.
type Decision struct {
	Approved   bool
	DenyReason string
	Remember   bool
}

// Request describes a command awaiting approval.
type Request struct {
	WorkflowID string
	SessionID  string
	TurnID     string
	ToolCallID string
	Command    string
	Reason     string
}

type pending struct {
	req    Request
	result chan Decision
}

// Service is the process-wide shell approval service. Safe for concurrent use.
type Service struct {
	mu        sync.Mutex
	pendingBy map[string]map[string]*pending // workflowID -> toolCallID -> pending
	remembered map[string]map[string]bool     // workflowID -> command -> remembered
}

// New creates an empty Service.
func New() *Service {
	return &Service{
		pendingBy:  make(map[string]map[string]*pending),
		remembered: make(map[string]map[string]bool),
	}
}

// IsCommandRemembered reports whether command was previously approved with
// "remember" set for workflowID.
func (s *Service) IsCommandRemembered(workflowID, command string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remembered[workflowID][command]
}

// RequestApproval suspends the caller until a decision arrives for this
// request, the context is cancelled, or cleanup is called for the workflow.
func (s *Service) RequestApproval(ctx context.Context, req Request) (Decision, error) {
	result := make(chan Decision, 1)

	s.mu.Lock()
	if s.pendingBy[req.WorkflowID] == nil {
		s.pendingBy[req.WorkflowID] = make(map[string]*pending)
	}
	s.pendingBy[req.WorkflowID][req.ToolCallID] = &pending{req: req, result: result}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pendingBy[req.WorkflowID], req.ToolCallID)
		s.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	case d := <-result:
		return d, nil
	}
}

// Resolve delivers a human decision for a pending request, identified by
// workflowID + toolCallID. Returns apperror.NotFound if no request is
// pending under that key (already resolved, timed out, or never existed).
func (s *Service) Resolve(workflowID, toolCallID string, decision Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pendingBy[workflowID][toolCallID]
	if !ok {
		return apperror.NotFound("pending shell approval", fmt.Sprintf("%s/%s", workflowID, toolCallID))
	}
	if decision.Approved && decision.Remember {
		if s.remembered[workflowID] == nil {
			s.remembered[workflowID] = make(map[string]bool)
		}
		s.remembered[workflowID][p.req.Command] = true
	}
	p.result <- decision
	return nil
}

// PendingForWorkflow lists requests currently awaiting a decision for a
// workflow, for surfacing to a UI.
func (s *Service) PendingForWorkflow(workflowID string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, 0, len(s.pendingBy[workflowID]))
	for _, p := range s.pendingBy[workflowID] {
		out = append(out, p.req)
	}
	return out
}

// CleanupWorkflow resolves every pending request for workflowID as denied
// (DenyReason "workflow cleaned up"; RequestApproval returns that Decision
// with a nil error, not an error) and forgets its remembered commands.
// Invariant: every unresolved request is either resolved by a decision or
// denied here — no goroutine is left blocked in RequestApproval past
// workflow teardown.
func (s *Service) CleanupWorkflow(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pendingBy[workflowID] {
		p.result <- Decision{Approved: false, DenyReason: "workflow cleaned up"}
	}
	delete(s.pendingBy, workflowID)
	delete(s.remembered, workflowID)
}
