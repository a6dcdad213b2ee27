package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/eventbus"
	"github.com/forgepulse/agentflow/internal/gitworktree"
	"github.com/forgepulse/agentflow/internal/pulseorchestrator"
	"github.com/forgepulse/agentflow/internal/workfloworchestrator"
)

// busEventMsg wraps one eventbus.Event as a bubbletea message, the same
// bridging idiom the teacher's poller.go used for Temporal query results.
type busEventMsg eventbus.Event

// commandResultMsg reports the outcome of a command run against the
// orchestrator (all of which are launched non-blocking per spec.md §5, so
// their errors surface asynchronously here rather than at command-entry time).
type commandResultMsg struct {
	command string
	err     error
}

// model is the bubbletea Model for the debug TUI: a scrolling event log
// plus a one-line command input. Grounded on the teacher's
// internal/cli/model.go (viewport + textarea/textinput + status line
// layout), narrowed from a full conversation REPL to an event-log viewer
// since cmd/monitor only observes and issues the spec's stage-gating
// operations, it does not stream a single session's transcript.
type model struct {
	ctx          context.Context
	orchestrator *workfloworchestrator.Service
	pulses       *pulseorchestrator.Service
	bus          *eventbus.Bus
	styles       Styles

	viewport viewport.Model
	input    textinput.Model
	mdRender *glamour.TermRenderer // renders assistant message segments; nil falls back to plain text

	lines     []string
	status    string
	width     int
	height    int
	ready     bool
}

func newModel(ctx context.Context, orchestrator *workfloworchestrator.Service, pulses *pulseorchestrator.Service, bus *eventbus.Bus, styles Styles) model {
	ti := textinput.New()
	ti.Placeholder = "new <title> | approve <wf> [quick|full] | changes <wf> <feedback> | retry <wf> | quit"
	ti.Prompt = "› "
	ti.Focus()

	// Grounded on internal/cli/renderer.go's glamour.NewTermRenderer call:
	// the teacher rendered assistant markdown the same way, just word-wrapped
	// to the live terminal width instead of a fixed column.
	mdRender, _ := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(100))

	return model{
		ctx:          ctx,
		orchestrator: orchestrator,
		pulses:       pulses,
		bus:          bus,
		styles:       styles,
		input:        ti,
		mdRender:     mdRender,
		status:       "agentflow monitor ready — type a command, Enter to run, ctrl+c to quit",
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		headerHeight := 1
		footerHeight := 2
		vpHeight := msg.Height - headerHeight - footerHeight
		if vpHeight < 0 {
			vpHeight = 0
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 2
		m.refreshViewport()
		return m, nil

	case busEventMsg:
		m.lines = append(m.lines, renderEvent(m.styles, m.mdRender, eventbus.Event(msg)))
		const maxLines = 2000
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil

	case commandResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("error running %q: %v", msg.command, msg.err)
		} else {
			m.status = fmt.Sprintf("ran %q", msg.command)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if line == "quit" || line == "exit" {
				return m, tea.Quit
			}
			return m, m.runCommand(line)
		case "pgup":
			m.viewport.HalfViewUp()
			return m, nil
		case "pgdown":
			m.viewport.HalfViewDown()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "initializing…"
	}
	statusLine := m.styles.StatusBar.Render(m.status)
	return fmt.Sprintf("%s\n%s\n%s\n%s", m.styles.Header.Render("agentflow — event monitor"), m.viewport.View(), statusLine, m.input.View())
}

func (m *model) refreshViewport() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
}

// runCommand parses a one-line operator command and calls the
// corresponding workfloworchestrator/pulseorchestrator method in the
// background, reporting the result as a commandResultMsg. Every orchestrator
// operation is itself non-blocking (spec.md §5), so there's no need to wait
// here either; the event log shows the effect as it happens.
func (m model) runCommand(line string) tea.Cmd {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	verb := fields[0]
	args := fields[1:]

	return func() tea.Msg {
		var err error
		switch verb {
		case "new":
			title := strings.Join(args, " ")
			if title == "" {
				err = fmt.Errorf("usage: new <title>")
				break
			}
			_, err = m.orchestrator.CreateWorkflow(m.ctx, title, "", domain.PriorityMedium)

		case "approve":
			if len(args) < 1 {
				err = fmt.Errorf("usage: approve <workflowId> [quick|full]")
				break
			}
			opts := workfloworchestrator.ApproveOptions{MergeStrategy: gitworktree.StrategySquash}
			if len(args) >= 2 {
				opts.Path = domain.RecommendedPath(args[1])
			}
			err = m.orchestrator.ApproveArtifact(m.ctx, args[0], opts)

		case "changes":
			if len(args) < 2 {
				err = fmt.Errorf("usage: changes <workflowId> <feedback>")
				break
			}
			err = m.orchestrator.RequestChanges(m.ctx, args[0], strings.Join(args[1:], " "))

		case "retry":
			if len(args) < 1 {
				err = fmt.Errorf("usage: retry <workflowId>")
				break
			}
			var pulse *domain.Pulse
			pulse, err = m.pulses.GetRunningPulse(m.ctx, args[0])
			if err == nil && pulse == nil {
				err = fmt.Errorf("no running pulse for workflow %s", args[0])
			}
			if err == nil {
				err = m.orchestrator.RetryPulse(m.ctx, args[0], pulse.ID)
			}

		case "send":
			if len(args) < 2 {
				err = fmt.Errorf("usage: send <workflowId> <message>")
				break
			}
			err = m.orchestrator.SendMessage(args[0], strings.Join(args[1:], " "))

		default:
			err = fmt.Errorf("unknown command %q", verb)
		}
		return commandResultMsg{command: line, err: err}
	}
}
