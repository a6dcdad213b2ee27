package domain

import "time"

// TurnRole distinguishes user-authored from assistant-authored turns.
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// TurnStatus is the lifecycle status of a single turn.
type TurnStatus string

const (
	TurnStreaming TurnStatus = "streaming"
	TurnCompleted TurnStatus = "completed"
	TurnError     TurnStatus = "error"
)

// Turn is a single round in a session.
//
// Invariant: TurnIndex is strictly increasing per session; a completed
// turn has CompletedAt set.
type Turn struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	TurnIndex   int        `json:"turn_index"`
	Role        TurnRole   `json:"role"`
	Status      TurnStatus `json:"status"`
	Hidden      bool       `json:"hidden"`
	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ToolCallStatus is the lifecycle status of a single tool invocation.
type ToolCallStatus string

const (
	ToolRunning   ToolCallStatus = "running"
	ToolCompleted ToolCallStatus = "completed"
	ToolError     ToolCallStatus = "error"
)

// Message is a text segment of an assistant (or user) turn. Segments are
// split on every tool call, so MessageIndex is 0..N within the turn.
type Message struct {
	ID           string    `json:"id"`
	TurnID       string    `json:"turn_id"`
	MessageIndex int       `json:"message_index"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// Thought is an extended-thinking segment of an assistant turn.
type Thought struct {
	ID          string    `json:"id"`
	TurnID      string    `json:"turn_id"`
	ThoughtIndex int      `json:"thought_index"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToolCall is a single tool invocation within a turn.
type ToolCall struct {
	ID         string         `json:"id"`
	TurnID     string         `json:"turn_id"`
	ToolIndex  int            `json:"tool_index"`
	ToolName   string         `json:"tool_name"`
	Reason     string         `json:"reason"`
	Input      string         `json:"input"` // validated JSON
	Output     string         `json:"output"`
	Status     ToolCallStatus `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
}
