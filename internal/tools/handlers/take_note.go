package handlers

import (
	"context"
	"fmt"

	"github.com/forgepulse/agentflow/internal/notestore"
	"github.com/forgepulse/agentflow/internal/tools"
)

// TakeNoteTool appends a note to the session's scratchpad. Notes are kept
// per session in the notestore; they are not fed back into later turns or
// into submitted stage artifacts.
type TakeNoteTool struct {
	store *notestore.Service
}

// NewTakeNoteTool creates a take_note tool handler backed by the given
// store.
func NewTakeNoteTool(store *notestore.Service) *TakeNoteTool {
	return &TakeNoteTool{store: store}
}

func (t *TakeNoteTool) Name() string              { return "take_note" }
func (t *TakeNoteTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *TakeNoteTool) IsMutating(*tools.ToolInvocation) bool { return false }

func (t *TakeNoteTool) Handle(_ context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	note, ok := invocation.Arguments["note"].(string)
	if !ok || note == "" {
		return nil, tools.NewValidationError("missing required argument: note")
	}

	t.store.Append(invocation.SessionID, note)

	count := len(t.store.List(invocation.SessionID))
	success := true
	return &tools.ToolOutput{
		Content: fmt.Sprintf("Noted (%d note(s) recorded this session).", count),
		Success: &success,
	}, nil
}
