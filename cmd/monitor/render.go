package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/eventbus"
)

// renderEvent formats one bus event as a single line for the scrollback
// viewport. Grounded on the teacher's internal/cli/renderer.go (ItemRenderer
// turning a typed item into a styled line), narrowed to events instead of
// conversation items since the debug TUI shows the whole bus, not one
// session's transcript. mdRender may be nil, in which case assistant
// message segments fall back to plain truncated text.
func renderEvent(styles Styles, mdRender *glamour.TermRenderer, evt eventbus.Event) string {
	ts := time.Now().Format("15:04:05")
	prefix := styles.Dim.Render(ts)

	switch evt.Type {
	case eventbus.EventWorkflowCreated:
		if wf, ok := evt.Payload.(*domain.Workflow); ok {
			return fmt.Sprintf("%s %s workflow %s created: %q", prefix, styles.Header.Render("◆"), styles.WorkflowID.Render(wf.ID), wf.Title)
		}
	case eventbus.EventWorkflowStageChanged:
		if m, ok := evt.Payload.(map[string]any); ok {
			return fmt.Sprintf("%s %s workflow %v → %s", prefix, styles.StageChange.Render("▶"), m["workflow_id"], styles.StageChange.Render(fmt.Sprint(m["stage"])))
		}
	case eventbus.EventWorkflowApprovalNeeded:
		if m, ok := evt.Payload.(map[string]any); ok {
			return fmt.Sprintf("%s %s workflow %v awaiting approval on %v (artifact %v)", prefix, styles.ApprovalEvent.Render("⏸"), m["workflow_id"], m["artifact_type"], m["artifact_id"])
		}
	case eventbus.EventWorkflowCompleted:
		return fmt.Sprintf("%s %s workflow %v done", prefix, styles.StageChange.Render("✔"), evt.Payload)
	case eventbus.EventWorkflowError:
		if m, ok := evt.Payload.(map[string]any); ok {
			return fmt.Sprintf("%s %s workflow %v error: %v", prefix, styles.ErrorEvent.Render("✖"), m["workflow_id"], m["error"])
		}
	case eventbus.EventSessionStarted:
		if s, ok := evt.Payload.(*domain.Session); ok {
			return fmt.Sprintf("%s %s session %s started (%s/%s)", prefix, styles.SessionEvent.Render("→"), s.ID, s.AgentRole, s.ContextID)
		}
	case eventbus.EventSessionCompleted:
		if m, ok := evt.Payload.(map[string]any); ok {
			return fmt.Sprintf("%s %s session %v completed", prefix, styles.SessionEvent.Render("←"), m["session_id"])
		}
	case eventbus.EventSessionError:
		if m, ok := evt.Payload.(map[string]any); ok {
			return fmt.Sprintf("%s %s session %v error: %v", prefix, styles.ErrorEvent.Render("✖"), m["session_id"], m["error"])
		}
	case eventbus.EventTurnStarted:
		if t, ok := evt.Payload.(*domain.Turn); ok {
			return fmt.Sprintf("%s %s turn %d started (session %s)", prefix, styles.Dim.Render("·"), t.TurnIndex, t.SessionID)
		}
	case eventbus.EventTurnSegmentComplete:
		if msg, ok := evt.Payload.(*domain.Message); ok {
			return fmt.Sprintf("%s %s %s", prefix, styles.Dim.Render("┆"), renderMarkdown(mdRender, msg.Content))
		}
	case eventbus.EventTurnCompleted:
		return fmt.Sprintf("%s %s turn %v completed", prefix, styles.Dim.Render("·"), evt.Payload)
	case eventbus.EventTurnToolStarted:
		if tc, ok := evt.Payload.(*domain.ToolCall); ok {
			return fmt.Sprintf("%s %s %s %s", prefix, styles.ToolName.Render("⚙"), tc.ToolName, styles.Dim.Render(truncate(tc.Input, 100)))
		}
	case eventbus.EventTurnToolCompleted:
		if tc, ok := evt.Payload.(*domain.ToolCall); ok {
			style := styles.ToolSuccess
			mark := "✓"
			if tc.Status == domain.ToolError {
				style = styles.ToolFailure
				mark = "✗"
			}
			return fmt.Sprintf("%s %s %s %s", prefix, style.Render(mark), tc.ToolName, styles.Dim.Render(truncate(tc.Output, 100)))
		}
	case eventbus.EventPulseStarted:
		if p, ok := evt.Payload.(*domain.Pulse); ok {
			return fmt.Sprintf("%s %s pulse %s started: %s", prefix, styles.PulseEvent.Render("▸"), p.ID, p.Description)
		}
	case eventbus.EventPulseSucceeded:
		return fmt.Sprintf("%s %s pulse %v succeeded", prefix, styles.PulseEvent.Render("✔"), evt.Payload)
	case eventbus.EventPulseFailed:
		return fmt.Sprintf("%s %s pulse %v failed", prefix, styles.ErrorEvent.Render("✖"), evt.Payload)
	case eventbus.EventPulseStopped:
		return fmt.Sprintf("%s %s pulse %v stopped", prefix, styles.Dim.Render("■"), evt.Payload)
	case eventbus.EventShellApprovalRequested:
		return fmt.Sprintf("%s %s shell approval requested: %+v", prefix, styles.ApprovalEvent.Render("⏸"), evt.Payload)
	case eventbus.EventShellApprovalResolved:
		return fmt.Sprintf("%s %s shell approval resolved: %+v", prefix, styles.SessionEvent.Render("✓"), evt.Payload)
	case eventbus.EventQuestionsAsked:
		return fmt.Sprintf("%s %s questions asked: %+v", prefix, styles.ApprovalEvent.Render("?"), evt.Payload)
	}

	// Fallback for any event type without a dedicated renderer (e.g. the
	// rarely-fired thought/message-delta and channel events).
	return fmt.Sprintf("%s %s %+v", prefix, styles.Dim.Render(string(evt.Type)), evt.Payload)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// renderMarkdown renders an assistant message segment through glamour,
// collapsed to one line for the scrollback log (glamour's own word-wrap
// still applies within that line's word-wrapped block before collapsing,
// so headings/bold/code spans still come through as ANSI styling).
func renderMarkdown(mdRender *glamour.TermRenderer, content string) string {
	if mdRender == nil {
		return truncate(content, 160)
	}
	out, err := mdRender.Render(content)
	if err != nil {
		return truncate(content, 160)
	}
	out = strings.TrimSpace(strings.ReplaceAll(out, "\n", " "))
	return truncate(out, 200)
}
