package domain

import "time"

// PulseStatus is the lifecycle status of a pulse.
type PulseStatus string

const (
	PulseProposed  PulseStatus = "proposed"
	PulseRunning   PulseStatus = "running"
	PulseSucceeded PulseStatus = "succeeded"
	PulseFailed    PulseStatus = "failed"
	PulseStopped   PulseStatus = "stopped"
)

// Pulse is a single code-change unit inside the in_progress stage.
//
// Invariant: at most one pulse per workflow has Status=running; pulses
// execute in the order implied by their DependsOn DAG (topological),
// ties broken by planned index.
type Pulse struct {
	ID                  string      `json:"id"`
	WorkflowID          string      `json:"workflow_id"`
	PlannedPulseID      string      `json:"planned_pulse_id"`
	Status              PulseStatus `json:"status"`
	Description         string      `json:"description"`
	HasUnresolvedIssues bool        `json:"has_unresolved_issues"`
	IsRecoveryCheckpoint bool       `json:"is_recovery_checkpoint"`
	RejectionCount      int         `json:"rejection_count"`
	WorktreePath        string      `json:"worktree_path"`
	FailureReason       string      `json:"failure_reason,omitempty"`
	PlannedIndex        int         `json:"planned_index"`
	DependsOn           []string    `json:"depends_on,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	StartedAt           *time.Time  `json:"started_at,omitempty"`
	EndedAt             *time.Time  `json:"ended_at,omitempty"`
}

// BaselineIssueType categorizes a pre-existing diagnostic.
type BaselineIssueType string

const (
	IssueError   BaselineIssueType = "error"
	IssueWarning BaselineIssueType = "warning"
)

// BaselineSource identifies which verification tool produced a baseline.
type BaselineSource string

const (
	SourceBuild BaselineSource = "build"
	SourceLint  BaselineSource = "lint"
	SourceTest  BaselineSource = "test"
)

// Baseline is a pre-existing build/lint/test diagnostic recorded during
// preflight so later verifications can ignore it.
type Baseline struct {
	ID          string            `json:"id"`
	WorkflowID  string            `json:"workflow_id"`
	IssueType   BaselineIssueType `json:"issue_type"`
	Source      BaselineSource    `json:"source"`
	Pattern     string            `json:"pattern"`
	FilePath    string            `json:"file_path,omitempty"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// PreflightSetup tracks the preflight sub-stage's own lifecycle, separate
// from the Pulse entities it precedes.
type PreflightSetup struct {
	WorkflowID string     `json:"workflow_id"`
	SessionID  string     `json:"session_id"`
	Status     PulseStatus `json:"status"` // running|succeeded|failed, reusing PulseStatus vocabulary
	FailureReason string  `json:"failure_reason,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}
