package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/eventbus"
)

func TestRenderEventWorkflowCreated(t *testing.T) {
	line := renderEvent(NoColorStyles(), nil, eventbus.Event{
		Type: eventbus.EventWorkflowCreated,
		Payload: &domain.Workflow{ID: "wf-1", Title: "Add JWT auth"},
	})
	assert.Contains(t, line, "wf-1")
	assert.Contains(t, line, "Add JWT auth")
}

func TestRenderEventStageChanged(t *testing.T) {
	line := renderEvent(NoColorStyles(), nil, eventbus.Event{
		Type: eventbus.EventWorkflowStageChanged,
		Payload: map[string]any{"workflow_id": "wf-1", "stage": domain.StageReview},
	})
	assert.Contains(t, line, "wf-1")
	assert.Contains(t, line, "review")
}

func TestRenderEventToolCompletedFailureUsesFailureMark(t *testing.T) {
	ended := time.Now().UTC()
	line := renderEvent(NoColorStyles(), nil, eventbus.Event{
		Type: eventbus.EventTurnToolCompleted,
		Payload: &domain.ToolCall{ToolName: "shell", Status: domain.ToolError, Output: "exit 1", EndedAt: &ended},
	})
	assert.Contains(t, line, "shell")
	assert.Contains(t, line, "exit 1")
	assert.Contains(t, line, "✗")
}

func TestRenderEventSegmentCompleteFallsBackWithoutRenderer(t *testing.T) {
	line := renderEvent(NoColorStyles(), nil, eventbus.Event{
		Type:    eventbus.EventTurnSegmentComplete,
		Payload: &domain.Message{Content: "plain text segment"},
	})
	assert.Contains(t, line, "plain text segment")
}

func TestRenderEventUnknownPayloadFallsBackToGenericFormat(t *testing.T) {
	line := renderEvent(NoColorStyles(), nil, eventbus.Event{Type: eventbus.EventChannelCreated, Payload: "chan-1"})
	assert.Contains(t, line, "channel:created")
	assert.Contains(t, line, "chan-1")
}

func TestTruncateShortStringUnchanged(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
}

func TestTruncateLongStringEllipsized(t *testing.T) {
	got := truncate("abcdefgh", 4)
	assert.Equal(t, "abcd…", got)
}
