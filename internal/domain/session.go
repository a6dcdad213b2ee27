package domain

import "time"

// ContextType distinguishes the two kinds of session context.
type ContextType string

const (
	ContextChannel  ContextType = "channel"
	ContextWorkflow ContextType = "workflow"
)

// AgentRole selects the persona prompt, allowed tool subset, and model
// scenario for a session. Each workflow stage is owned by exactly one role.
type AgentRole string

const (
	RoleScoping    AgentRole = "scoping"
	RoleResearch   AgentRole = "research"
	RolePlanning   AgentRole = "planning"
	RolePreflight  AgentRole = "preflight"
	RoleExecution  AgentRole = "execution"
	RoleReview     AgentRole = "review"
	RoleDiscussion AgentRole = "discussion"
)

// StageOwner maps a workflow stage to the agent role that runs during it.
var StageOwner = map[WorkflowStage]AgentRole{
	StageScoping:     RoleScoping,
	StageResearching: RoleResearch,
	StagePlanning:    RolePlanning,
	StageInProgress:  RolePreflight, // the preflight sub-stage starts in_progress
	StageReview:      RoleReview,
}

// SessionStatus is the lifecycle status of a single agent execution.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionError     SessionStatus = "error"
)

// Session is a single agent execution context, bound to a (contextType,
// contextId) pair and an agent role.
//
// Invariant: at most one active session per (ContextType, ContextID).
type Session struct {
	ID         string        `json:"id"`
	ContextType ContextType  `json:"context_type"`
	ContextID  string        `json:"context_id"`
	AgentRole  AgentRole     `json:"agent_role"`
	Status     SessionStatus `json:"status"`
	PulseID    *string       `json:"pulse_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ContextKey returns the stable index key used by the session manager's
// context-indexed map: "<contextType>:<contextId>".
func (s *Session) ContextKey() string {
	return string(s.ContextType) + ":" + s.ContextID
}

// ContextKey builds the same key from raw parts, for lookups where no
// Session value exists yet.
func ContextKey(contextType ContextType, contextID string) string {
	return string(contextType) + ":" + contextID
}
