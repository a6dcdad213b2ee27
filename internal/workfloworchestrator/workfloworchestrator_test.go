package workfloworchestrator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgepulse/agentflow/internal/agentrunner"
	"github.com/forgepulse/agentflow/internal/applog"
	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/eventbus"
	"github.com/forgepulse/agentflow/internal/gitworktree"
	"github.com/forgepulse/agentflow/internal/llm"
	"github.com/forgepulse/agentflow/internal/models"
	"github.com/forgepulse/agentflow/internal/pulseorchestrator"
	"github.com/forgepulse/agentflow/internal/repository/memory"
	"github.com/forgepulse/agentflow/internal/sessionmanager"
	"github.com/forgepulse/agentflow/internal/shellapproval"
	"github.com/forgepulse/agentflow/internal/tools"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644))
	run("add", "a.txt")
	run("commit", "-q", "-m", "init")
	return dir
}

// scriptedLLM hands out one response per internal tool name it's asked to
// emit next, keyed off how many times Call has been invoked for a given
// session role — tests enqueue exactly the sequence of block-tool calls
// (or plain stop) the scenario needs.
type scriptedLLM struct {
	responses []llm.LLMResponse
	calls     int
}

func (f *scriptedLLM) Call(_ context.Context, _ llm.LLMRequest) (llm.LLMResponse, error) {
	if f.calls >= len(f.responses) {
		return llm.LLMResponse{
			Items:        []models.ConversationItem{{Type: models.ItemTypeAssistantMessage, Content: "ok"}},
			FinishReason: models.FinishReasonStop,
		}, nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *scriptedLLM) Compact(_ context.Context, _ llm.CompactRequest) (llm.CompactResponse, error) {
	return llm.CompactResponse{}, nil
}

func blockCallResponse(toolName string, args map[string]interface{}) llm.LLMResponse {
	return llm.LLMResponse{
		Items: []models.ConversationItem{{
			Type:      models.ItemTypeToolCall,
			ToolCalls: []models.ToolCall{{ID: toolName + "-call", Name: toolName, Arguments: args}},
		}},
		FinishReason: models.FinishReasonToolCalls,
	}
}

// queue lets a test feed each successive session a fresh scripted LLM,
// since every startRoleSession call builds its own agentrunner.Config but
// shares the single llm.LLMClient injected into the Service.
type queue struct {
	llms  []*scriptedLLM
	index int
}

func newQueue(llms ...*scriptedLLM) *queue {
	return &queue{llms: llms}
}

func (q *queue) Call(ctx context.Context, req llm.LLMRequest) (llm.LLMResponse, error) {
	if q.index >= len(q.llms) {
		return llm.LLMResponse{Items: []models.ConversationItem{{Type: models.ItemTypeAssistantMessage, Content: "ok"}}, FinishReason: models.FinishReasonStop}, nil
	}
	return q.llms[q.index].Call(ctx, req)
}

func (q *queue) Compact(ctx context.Context, req llm.CompactRequest) (llm.CompactResponse, error) {
	return llm.CompactResponse{}, nil
}

func (q *queue) advance() {
	q.index++
}

type harness struct {
	svc           *Service
	workflows     *memory.WorkflowStore
	artifacts     *memory.ArtifactStore
	pulses        *memory.PulseStore
	sessions      *memory.SessionStore
	conversations *memory.ConversationStore
	sessionMgr    *sessionmanager.Manager
	bus           *eventbus.Bus
	repoRoot      string
}

func newHarness(t *testing.T, llmClient llm.LLMClient) *harness {
	t.Helper()
	repo := initRepo(t)

	workflows := memory.NewWorkflowStore()
	artifacts := memory.NewArtifactStore()
	pulses := memory.NewPulseStore()
	sessions := memory.NewSessionStore()
	conversations := memory.NewConversationStore()
	bus := eventbus.New(64)

	worktrees := gitworktree.New(t.TempDir(), "agentflow")
	pulseSvc := pulseorchestrator.New(pulses, worktrees, bus)
	sessionMgr := sessionmanager.New(sessions, bus)
	shellSvc := shellapproval.New()

	registry := tools.NewToolRegistry()
	router := tools.NewToolRouter(registry, nil)
	runner := agentrunner.New(llmClient, router, conversations, bus)

	svc := New(workflows, artifacts, conversations, sessionMgr, pulseSvc, worktrees, shellSvc, runner, llmClient, bus, applog.New(), repo, "main", models.DefaultModelConfig())

	return &harness{
		svc: svc, workflows: workflows, artifacts: artifacts, pulses: pulses,
		sessions: sessions, conversations: conversations, sessionMgr: sessionMgr,
		bus: bus, repoRoot: repo,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestCreateWorkflowStartsScopingSession(t *testing.T) {
	requireGit(t)
	q := newQueue(&scriptedLLM{responses: []llm.LLMResponse{
		{Items: []models.ConversationItem{{Type: models.ItemTypeAssistantMessage, Content: "Add logging"}}, FinishReason: models.FinishReasonStop},
	}})
	h := newHarness(t, q)

	wf, err := h.svc.CreateWorkflow(context.Background(), "", "Add structured logging to the request handler", domain.PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, domain.StageScoping, wf.Status)
	assert.NotEmpty(t, wf.Title)

	waitFor(t, time.Second, func() bool {
		stored, err := h.workflows.GetByID(context.Background(), wf.ID)
		return err == nil && stored.CurrentSessionID != nil
	})
}

// TestQuickPathReachesAwaitingApprovalAtReview drives a full quick-path
// pipeline end to end: scope submission, scope approval (quick),
// preflight completion, single pulse completion, and review submission,
// asserting the workflow lands awaiting approval on the review card.
func TestQuickPathReachesAwaitingApprovalAtReview(t *testing.T) {
	requireGit(t)

	scopingLLM := &scriptedLLM{responses: []llm.LLMResponse{
		blockCallResponse("submit_scope", map[string]interface{}{"summary": "small fix", "recommendedPath": "quick"}),
	}}
	preflightLLM := &scriptedLLM{responses: []llm.LLMResponse{
		blockCallResponse("complete_preflight", map[string]interface{}{}),
	}}
	executionLLM := &scriptedLLM{responses: []llm.LLMResponse{
		blockCallResponse("complete_pulse", map[string]interface{}{"summary": "did the fix", "hasUnresolvedIssues": false}),
	}}
	reviewLLM := &scriptedLLM{responses: []llm.LLMResponse{
		blockCallResponse("complete_review", map[string]interface{}{"recommendation": "approve", "suggestedCommitMessage": "fix: small fix"}),
	}}
	q := newQueue(scopingLLM, preflightLLM, executionLLM, reviewLLM)
	h := newHarness(t, q)

	wf, err := h.svc.CreateWorkflow(context.Background(), "Small fix", "Fix the thing", domain.PriorityMedium)
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		stored, err := h.workflows.GetByID(context.Background(), wf.ID)
		return err == nil && stored.AwaitingApproval && stored.PendingArtifactType == domain.ArtifactScopeCard
	})
	q.advance()

	require.NoError(t, h.svc.ApproveArtifact(context.Background(), wf.ID, ApproveOptions{}))

	waitFor(t, 2*time.Second, func() bool {
		stored, err := h.workflows.GetByID(context.Background(), wf.ID)
		return err == nil && stored.Status == domain.StageInProgress && stored.CurrentSessionID != nil
	})
	q.advance()

	waitFor(t, 2*time.Second, func() bool {
		stored, err := h.workflows.GetByID(context.Background(), wf.ID)
		return err == nil && stored.Status == domain.StageReview
	})
	q.advance()

	waitFor(t, 2*time.Second, func() bool {
		stored, err := h.workflows.GetByID(context.Background(), wf.ID)
		return err == nil && stored.AwaitingApproval && stored.PendingArtifactType == domain.ArtifactReviewCard
	})

	card, err := h.artifacts.LatestReviewCard(context.Background(), wf.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecommendApprove, card.Recommendation)
	assert.Equal(t, "fix: small fix", card.SuggestedCommitMessage)
}

func TestApproveReviewCardMergesAndCompletesWorkflow(t *testing.T) {
	requireGit(t)
	h := newHarness(t, newQueue())

	ctx := context.Background()
	wf := &domain.Workflow{
		ID: "wf-merge", Title: "t", Description: "d", Status: domain.StageReview,
		AwaitingApproval: true, PendingArtifactType: domain.ArtifactReviewCard,
		BaseBranch: "main", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, h.workflows.Create(ctx, wf))

	worktreePath, err := h.svc.worktrees.InitializeWorktree(ctx, h.repoRoot, wf.ID, "main")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(worktreePath, "b.txt"), []byte("new\n"), 0o644))
	cmd := exec.Command("git", "-C", worktreePath, "add", "b.txt")
	require.NoError(t, cmd.Run())
	cmd = exec.Command("git", "-C", worktreePath, "commit", "-q", "-m", "wip: add b")
	require.NoError(t, cmd.Run())

	card := &domain.ReviewCard{ID: "rc-1", WorkflowID: wf.ID, Status: domain.ArtifactPending, CreatedAt: time.Now(), SuggestedCommitMessage: "feat: add b"}
	require.NoError(t, h.artifacts.CreateReviewCard(ctx, card))

	require.NoError(t, h.svc.ApproveArtifact(ctx, wf.ID, ApproveOptions{MergeStrategy: gitworktree.StrategySquash}))

	stored, err := h.workflows.GetByID(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageDone, stored.Status)
	assert.False(t, stored.AwaitingApproval)

	_, statErr := os.Stat(filepath.Join(h.repoRoot, "b.txt"))
	require.NoError(t, statErr)
}

func TestRequestChangesReinjectsFeedbackOnSameSession(t *testing.T) {
	requireGit(t)

	scopingLLM := &scriptedLLM{responses: []llm.LLMResponse{
		blockCallResponse("submit_scope", map[string]interface{}{"summary": "first pass", "recommendedPath": "quick"}),
		{Items: []models.ConversationItem{{Type: models.ItemTypeAssistantMessage, Content: "acknowledged"}}, FinishReason: models.FinishReasonStop},
	}}
	h := newHarness(t, newQueue(scopingLLM))

	wf, err := h.svc.CreateWorkflow(context.Background(), "Title", "Desc", domain.PriorityMedium)
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		stored, err := h.workflows.GetByID(context.Background(), wf.ID)
		return err == nil && stored.AwaitingApproval
	})

	sessBefore := h.sessionMgr.GetActive(domain.ContextWorkflow, wf.ID)
	require.NotNil(t, sessBefore)

	require.NoError(t, h.svc.RequestChanges(context.Background(), wf.ID, "please reconsider the approach"))

	waitFor(t, time.Second, func() bool {
		stored, err := h.workflows.GetByID(context.Background(), wf.ID)
		return err == nil && !stored.AwaitingApproval
	})

	waitFor(t, time.Second, func() bool {
		return scopingLLM.calls == 2
	})

	sessAfter := h.sessionMgr.GetActive(domain.ContextWorkflow, wf.ID)
	require.NotNil(t, sessAfter)
	assert.Equal(t, sessBefore.ID, sessAfter.ID)
}

// TestRequestChangesRehydratesSessionAfterRestart simulates a process
// restart: a second Service is built from scratch, sharing the same
// backing repositories but with a brand-new, empty sessionmanager.Manager
// (no in-memory entries survive a restart). The persisted session row is
// still "active", so RequestChanges must rehydrate it via
// getOrRestoreSession rather than treating the workflow as unresumable.
func TestRequestChangesRehydratesSessionAfterRestart(t *testing.T) {
	requireGit(t)

	scopingLLM := &scriptedLLM{responses: []llm.LLMResponse{
		blockCallResponse("submit_scope", map[string]interface{}{"summary": "first pass", "recommendedPath": "quick"}),
		{Items: []models.ConversationItem{{Type: models.ItemTypeAssistantMessage, Content: "acknowledged"}}, FinishReason: models.FinishReasonStop},
	}}
	h := newHarness(t, newQueue(scopingLLM))

	wf, err := h.svc.CreateWorkflow(context.Background(), "Title", "Desc", domain.PriorityMedium)
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		stored, err := h.workflows.GetByID(context.Background(), wf.ID)
		return err == nil && stored.AwaitingApproval
	})

	stored, err := h.workflows.GetByID(context.Background(), wf.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentSessionID)

	// A fresh sessionmanager.Manager over the same session store has no
	// in-memory entries — exactly the state after a process restart.
	restartedMgr := sessionmanager.New(h.sessions, h.bus)
	restartedWorktrees := gitworktree.New(t.TempDir(), "agentflow")
	restartedSvc := New(h.workflows, h.artifacts, h.conversations, restartedMgr, pulseorchestrator.New(h.pulses, restartedWorktrees, h.bus),
		restartedWorktrees, shellapproval.New(), agentrunner.New(newQueue(scopingLLM), tools.NewToolRouter(tools.NewToolRegistry(), nil), h.conversations, h.bus),
		newQueue(scopingLLM), h.bus, applog.New(), h.repoRoot, "main", models.DefaultModelConfig())

	require.False(t, restartedMgr.HasActiveSession(domain.ContextWorkflow, wf.ID))

	require.NoError(t, restartedSvc.RequestChanges(context.Background(), wf.ID, "please reconsider the approach"))

	assert.True(t, restartedMgr.HasActiveSession(domain.ContextWorkflow, wf.ID))
	rehydrated := restartedMgr.GetActive(domain.ContextWorkflow, wf.ID)
	require.NotNil(t, rehydrated)
	assert.Equal(t, *stored.CurrentSessionID, rehydrated.ID)
}

func TestSendMessageIsNoOpWhenNoActiveSession(t *testing.T) {
	h := newHarness(t, newQueue())
	err := h.svc.SendMessage("no-such-workflow", "hello")
	assert.NoError(t, err)
}

func TestRetryPulseExceedingRejectionLimitFailsPulseAndMovesToReview(t *testing.T) {
	requireGit(t)
	h := newHarness(t, newQueue())
	ctx := context.Background()

	wf := &domain.Workflow{ID: "wf-retry", Title: "t", Description: "d", Status: domain.StageInProgress, BaseBranch: "main", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, h.workflows.Create(ctx, wf))

	pulse := &domain.Pulse{ID: "p-1", WorkflowID: wf.ID, PlannedPulseID: "p-1", Status: domain.PulseRunning, Description: "do the thing", CreatedAt: time.Now()}
	require.NoError(t, h.pulses.Create(ctx, pulse))
	require.NoError(t, h.pulses.StartPulse(ctx, pulse.ID))

	for i := 0; i < pulseorchestrator.MaxRejections+1; i++ {
		require.NoError(t, h.svc.RetryPulse(ctx, wf.ID, pulse.ID))
	}

	stored, err := h.pulses.GetPulsesForWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.PulseFailed, stored[0].Status)

	wfAfter, err := h.workflows.GetByID(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageReview, wfAfter.Status)
}

func TestErrorWorkflowSwallowsNotFound(t *testing.T) {
	h := newHarness(t, newQueue())
	err := h.svc.ErrorWorkflow(context.Background(), "missing-workflow", assert.AnError)
	assert.NoError(t, err)
}
