// Command monitor is the debug TUI that consumes the orchestrator's event
// bus directly, in-process (SPEC_FULL.md §6.10: "no transport... consumed
// directly... by cmd/monitor's debug TUI and by tests"). It builds the same
// dependency graph as cmd/server and drives a bubbletea program instead of
// just logging events, with a one-line command input for the operations
// spec.md §4.10 exposes (create-workflow, approve-artifact, request-changes,
// retry-pulse).
//
// Grounded on the teacher's internal/cli bubbletea REPL
// (github.com/charmbracelet/bubbletea/bubbles/lipgloss/glamour), reworked
// from a Temporal-workflow client into a direct event-bus subscriber.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/forgepulse/agentflow/internal/agentrunner"
	"github.com/forgepulse/agentflow/internal/applog"
	"github.com/forgepulse/agentflow/internal/eventbus"
	"github.com/forgepulse/agentflow/internal/execpolicy"
	"github.com/forgepulse/agentflow/internal/gitworktree"
	"github.com/forgepulse/agentflow/internal/llm"
	"github.com/forgepulse/agentflow/internal/mcp"
	"github.com/forgepulse/agentflow/internal/models"
	"github.com/forgepulse/agentflow/internal/notestore"
	"github.com/forgepulse/agentflow/internal/pulseorchestrator"
	"github.com/forgepulse/agentflow/internal/repository"
	"github.com/forgepulse/agentflow/internal/repository/memory"
	"github.com/forgepulse/agentflow/internal/repository/sqlite"
	"github.com/forgepulse/agentflow/internal/sessionmanager"
	"github.com/forgepulse/agentflow/internal/shellapproval"
	"github.com/forgepulse/agentflow/internal/tools"
	"github.com/forgepulse/agentflow/internal/tools/handlers"
	"github.com/forgepulse/agentflow/internal/version"
	"github.com/forgepulse/agentflow/internal/workfloworchestrator"
)

func main() {
	_ = godotenv.Load()

	var noColor bool
	flag.BoolVar(&noColor, "no-color", false, "disable colored output")
	flag.Parse()

	logger := applog.New()
	logger.Info("agentflow monitor starting", "commit", version.GitCommit)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repoRoot := os.Getenv("AGENTFLOW_REPO_ROOT")
	if repoRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatalf("getwd: %v", err)
		}
		found, err := gitworktree.FindRepoRoot(ctx, cwd)
		if err != nil {
			log.Fatalf("find repo root (set AGENTFLOW_REPO_ROOT to override): %v", err)
		}
		repoRoot = found
	}
	baseBranch := envOr("AGENTFLOW_BASE_BRANCH", "main")
	dataDir := envOr("AGENTFLOW_DATA_DIR", filepath.Join(repoRoot, ".agentflow"))
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("create data dir %s: %v", dataDir, err)
	}

	bus := eventbus.New(256)

	db, err := sqlite.Open(filepath.Join(dataDir, "agentflow.db"))
	if err != nil {
		log.Fatalf("open sqlite db: %v", err)
	}
	defer db.Close()

	workflows := sqlite.NewWorkflowStore(db)
	sessionRepo := sqlite.NewSessionStore(db)
	artifacts := memory.NewArtifactStore()
	pulses := memory.NewPulseStore()
	conversations := memory.NewConversationStore()

	worktrees := gitworktree.New(filepath.Join(dataDir, "worktrees"), "agentflow")
	shellApproval := shellapproval.New()

	policy, err := execpolicy.LoadExecPolicy(dataDir)
	if err != nil {
		log.Fatalf("load exec policy: %v", err)
	}
	policyManager := execpolicy.NewExecPolicyManager(policy)

	registry := buildToolRegistry(policyManager, shellApproval, artifacts, pulses, bus)
	router := tools.NewToolRouter(registry, nil)

	llmClient := llm.NewMultiProviderClient()

	runner := agentrunner.New(llmClient, router, conversations, bus)
	sessions := sessionmanager.New(sessionRepo, bus)
	pulseSvc := pulseorchestrator.New(pulses, worktrees, bus)

	model := models.DefaultModelConfig()
	if provider := os.Getenv("AGENTFLOW_LLM_PROVIDER"); provider != "" {
		model.Provider = provider
	}
	if m := os.Getenv("AGENTFLOW_LLM_MODEL"); m != "" {
		model.Model = m
	}

	orchestrator := workfloworchestrator.New(
		workflows, artifacts, conversations, sessions, pulseSvc, worktrees,
		shellApproval, runner, llmClient, bus, logger, repoRoot, baseBranch, model,
	)

	styles := DefaultStyles()
	if noColor {
		styles = NoColorStyles()
	}

	program := tea.NewProgram(newModel(ctx, orchestrator, pulseSvc, bus, styles), tea.WithAltScreen())
	pumpEvents(ctx, bus, program)

	if _, err := program.Run(); err != nil {
		log.Fatalf("monitor: %v", err)
	}
}

// pumpEvents forwards every bus event into the bubbletea program as a
// busEventMsg, for the lifetime of ctx. Grounded on the teacher's
// poller.go, which bridged Temporal query polling into tea.Msg the same
// way — here the source is the bus instead of a poll loop.
func pumpEvents(ctx context.Context, bus *eventbus.Bus, program *tea.Program) {
	sub := bus.Subscribe()
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-sub.Events():
				if !ok {
					return
				}
				program.Send(busEventMsg(evt))
			}
		}
	}()
}

// buildToolRegistry registers every built-in tool handler. complete_review
// is intentionally absent: it is a block-group tool (internal/tools/
// block_spec.go) intercepted by the workflow orchestrator before it would
// ever reach ToolRouter.DispatchToolCall.
func buildToolRegistry(
	policy *execpolicy.ExecPolicyManager,
	shellApproval *shellapproval.Service,
	artifacts repository.ArtifactRepository,
	pulses repository.PulseRepository,
	bus *eventbus.Bus,
) *tools.ToolRegistry {
	registry := tools.NewToolRegistry()

	registry.Register(handlers.NewShellTool(policy, shellApproval, bus))
	registry.Register(handlers.NewReadFileTool())
	registry.Register(handlers.NewWriteFileTool(nil))
	registry.Register(handlers.NewEditFileTool(nil))
	registry.Register(handlers.NewMultiEditTool(nil))
	registry.Register(handlers.NewListDirectoryTool())
	registry.Register(handlers.NewGrepFilesTool())
	registry.Register(handlers.NewSemanticSearchTool())
	registry.Register(handlers.NewTakeNoteTool(notestore.New()))
	registry.Register(handlers.NewWebCodeSearchTool(nil))
	registry.Register(handlers.NewMCPHandler(mcp.NewMcpStore()))

	registry.Register(handlers.NewGetDiffTool())
	registry.Register(handlers.NewGetScopeCardTool(artifacts))
	registry.Register(handlers.NewAddLineCommentTool(artifacts))
	registry.Register(handlers.NewAddFileCommentTool(artifacts))
	registry.Register(handlers.NewAddReviewCommentTool(artifacts))

	registry.Register(handlers.NewRecordBaselineTool(pulses))

	return registry
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
