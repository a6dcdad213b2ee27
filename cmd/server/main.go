// Server wires the workflow orchestrator and its full dependency graph
// into one long-lived process. Per SPEC_FULL.md's HTTP/WS surface
// decision, it exposes no transport of its own: workfloworchestrator.Service
// is the method surface, consumed in-process by cmd/monitor's debug TUI
// and by tests. Run standalone, it creates one workflow (if -title is
// given) and then blocks, logging bus events until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/forgepulse/agentflow/internal/agentrunner"
	"github.com/forgepulse/agentflow/internal/applog"
	"github.com/forgepulse/agentflow/internal/domain"
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
	_ = godotenv.Load() // best-effort; env vars set directly still win

	var title, description string
	flag.StringVar(&title, "title", "", "create a workflow with this title on startup")
	flag.StringVar(&description, "description", "", "description for -title")
	flag.Parse()

	logger := applog.New()
	logger.Info("agentflow server starting", "commit", version.GitCommit)
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

	logBusEvents(ctx, bus, logger)

	if title != "" {
		wf, err := orchestrator.CreateWorkflow(ctx, title, description, domain.PriorityMedium)
		if err != nil {
			log.Fatalf("create workflow: %v", err)
		}
		logger.Info("workflow created", "id", wf.ID, "title", wf.Title)
	}

	logger.Info("agentflow server ready", "repo_root", repoRoot, "data_dir", dataDir)
	<-ctx.Done()
	logger.Info("agentflow server shutting down")
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

// logBusEvents subscribes to bus and logs every event until ctx is done,
// giving cmd/server a visible heartbeat when run without -title.
func logBusEvents(ctx context.Context, bus *eventbus.Bus, logger applog.Logger) {
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
				logger.Info("event", "type", evt.Type, "payload", evt.Payload)
			}
		}
	}()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
