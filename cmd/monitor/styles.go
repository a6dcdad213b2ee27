package main

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles for the debug TUI's event log.
// Grounded on the teacher's internal/cli/styles.go (same Styles-struct/
// DefaultStyles/NoColorStyles shape), trimmed to the subset an event-log
// viewer needs rather than a full conversation renderer.
type Styles struct {
	Header        lipgloss.Style
	WorkflowID    lipgloss.Style
	StageChange   lipgloss.Style
	SessionEvent  lipgloss.Style
	ToolName      lipgloss.Style
	ToolSuccess   lipgloss.Style
	ToolFailure   lipgloss.Style
	ApprovalEvent lipgloss.Style
	PulseEvent    lipgloss.Style
	ErrorEvent    lipgloss.Style
	Dim           lipgloss.Style
	StatusBar     lipgloss.Style
	InputPrompt   lipgloss.Style
}

// DefaultStyles returns styles with colors enabled.
func DefaultStyles() Styles {
	return Styles{
		Header:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		WorkflowID:    lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		StageChange:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		SessionEvent:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		ToolName:      lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		ToolSuccess:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		ToolFailure:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		ApprovalEvent: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
		PulseEvent:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		ErrorEvent:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		Dim:           lipgloss.NewStyle().Faint(true),
		StatusBar:     lipgloss.NewStyle().Faint(true),
		InputPrompt:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	}
}

// NoColorStyles returns styles with no colors, for -no-color or piped output.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain, WorkflowID: plain, StageChange: plain, SessionEvent: plain,
		ToolName: plain, ToolSuccess: plain, ToolFailure: plain, ApprovalEvent: plain,
		PulseEvent: plain, ErrorEvent: plain, Dim: plain, StatusBar: plain, InputPrompt: plain,
	}
}
