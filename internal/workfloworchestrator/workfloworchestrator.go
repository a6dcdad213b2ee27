// Package workfloworchestrator is the stage state machine: it owns the
// forward-only scoping -> researching -> planning -> in_progress -> review
// -> done pipeline, gates approval-required stage transitions behind
// human/API approval, and drives the in_progress sub-pipeline (preflight
// then pulses) via internal/pulseorchestrator.
//
// Grounded on AgenticWorkflow's stage-advance logic (internal/workflow/
// agentic.go: the turn/tool-result dispatch that decides whether to keep
// looping, wait for approval, or move the Temporal workflow to its next
// phase) reimplemented without Temporal: a workflow's "current phase" is a
// row in WorkflowRepository instead of workflow-execution state, and each
// phase's agent runs as one sessionmanager session instead of one
// workflow-local loop iteration.
package workfloworchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgepulse/agentflow/internal/agentrunner"
	"github.com/forgepulse/agentflow/internal/apperror"
	"github.com/forgepulse/agentflow/internal/applog"
	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/eventbus"
	"github.com/forgepulse/agentflow/internal/gitworktree"
	"github.com/forgepulse/agentflow/internal/instructions"
	"github.com/forgepulse/agentflow/internal/llm"
	"github.com/forgepulse/agentflow/internal/models"
	"github.com/forgepulse/agentflow/internal/pulseorchestrator"
	"github.com/forgepulse/agentflow/internal/repository"
	"github.com/forgepulse/agentflow/internal/sessionmanager"
	"github.com/forgepulse/agentflow/internal/shellapproval"
	"github.com/forgepulse/agentflow/internal/tools"
)

// approvalArtifactTypes maps a stage-completion tool to the artifact type it
// submits. Seeing one of these sets the workflow's awaiting_approval flag
// and pending artifact type; it does not transition the stage by itself.
//
// Mirrors spec.md §4.8's APPROVAL_REQUIRED_TOOLS, expressed as the artifact
// type it gates rather than the eventual next stage (ApproveArtifact, not
// HandleToolResult, is what actually decides the next stage per artifact).
var approvalArtifactTypes = map[string]domain.ArtifactType{
	"submit_scope":    domain.ArtifactScopeCard,
	"submit_research": domain.ArtifactResearch,
	"submit_plan":     domain.ArtifactPlan,
	"complete_review": domain.ArtifactReviewCard,
}

// autoTransitionTargets maps a tool to the stage it transitions to
// immediately, with no human approval gate. Mirrors spec.md §4.8's
// AUTO_TRANSITION_TOOLS; in practice complete_pulse is handled through
// HandlePulseCompletion instead (see afterTurn), since it needs the tool
// call's own commitMessage/hasUnresolvedIssues arguments. This map stays
// for any future auto-transition tool with no such argument dependency.
var autoTransitionTargets = map[string]domain.WorkflowStage{}

// ToolResult reports what HandleToolResult did.
type ToolResult struct {
	AwaitingApproval bool
	Transitioned     bool
	ArtifactType     domain.ArtifactType
}

// ApproveOptions customizes ApproveArtifact's behavior.
type ApproveOptions struct {
	// Path forces "quick" or "full" regardless of the ScopeCard's own
	// recommendation. Only meaningful when approving a ScopeCard.
	Path domain.RecommendedPath
	// MergeStrategy picks how the review stage's approval merges the
	// workflow branch. Defaults to StrategySquash.
	MergeStrategy gitworktree.MergeStrategy
}

// Service wires every collaborator the stage pipeline needs: persistence,
// the session and pulse sub-orchestrators, git worktree management, shell
// approval bookkeeping, and the agent runner itself.
type Service struct {
	workflows     repository.WorkflowRepository
	artifacts     repository.ArtifactRepository
	conversations repository.ConversationRepository
	sessions      *sessionmanager.Manager
	pulses        *pulseorchestrator.Service
	worktrees     *gitworktree.Service
	shellApproval *shellapproval.Service
	runner        *agentrunner.Runner
	llmClient     llm.LLMClient
	bus           *eventbus.Bus
	logger        applog.Logger

	repoRoot   string
	baseBranch string
	model      models.ModelConfig
	profiles   *models.ProfileRegistry

	mu      sync.Mutex
	inboxes map[string]chan string // session ID -> pending user-message queue
}

// New creates a workflow orchestrator. repoRoot is the git repository the
// in_progress stage's worktrees branch off; baseBranch is the default
// branch new workflows merge into unless overridden.
func New(
	workflows repository.WorkflowRepository,
	artifacts repository.ArtifactRepository,
	conversations repository.ConversationRepository,
	sessions *sessionmanager.Manager,
	pulses *pulseorchestrator.Service,
	worktrees *gitworktree.Service,
	shellApproval *shellapproval.Service,
	runner *agentrunner.Runner,
	llmClient llm.LLMClient,
	bus *eventbus.Bus,
	logger applog.Logger,
	repoRoot, baseBranch string,
	model models.ModelConfig,
) *Service {
	return &Service{
		workflows:     workflows,
		artifacts:     artifacts,
		conversations: conversations,
		sessions:      sessions,
		pulses:        pulses,
		worktrees:     worktrees,
		shellApproval: shellApproval,
		runner:        runner,
		llmClient:     llmClient,
		bus:           bus,
		logger:        logger,
		repoRoot:      repoRoot,
		baseBranch:    baseBranch,
		model:         model,
		profiles:      models.NewDefaultRegistry(),
		inboxes:       make(map[string]chan string),
	}
}

// CreateWorkflow persists a new workflow in the scoping stage and launches
// its scoping session. It returns once the session is launched, without
// waiting for the scoping agent's first turn to finish.
func (s *Service) CreateWorkflow(ctx context.Context, title, description string, priority domain.WorkflowPriority) (*domain.Workflow, error) {
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if title == "" {
		generated, err := s.generateTitle(ctx, description)
		if err != nil {
			return nil, fmt.Errorf("generate workflow title: %w", err)
		}
		title = generated
	}

	now := time.Now().UTC()
	workflow := &domain.Workflow{
		ID:                  uuid.NewString(),
		Title:               title,
		Description:         description,
		Priority:            priority,
		Status:              domain.StageScoping,
		PendingArtifactType: domain.ArtifactNone,
		BaseBranch:          s.baseBranch,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.workflows.Create(ctx, workflow); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}

	prompt := fmt.Sprintf("New workflow: %s\n\n%s", title, description)
	session, err := s.startRoleSession(ctx, workflow.ID, domain.RoleScoping, "", nil, prompt)
	if err != nil {
		return nil, fmt.Errorf("start scoping session: %w", err)
	}
	if err := s.workflows.SetCurrentSession(ctx, workflow.ID, &session.ID); err != nil {
		return nil, fmt.Errorf("set current session: %w", err)
	}

	s.bus.Broadcast(eventbus.Event{Type: eventbus.EventWorkflowCreated, Payload: workflow})
	return workflow, nil
}

// generateTitle asks the LLM for a short title summarizing description,
// used when CreateWorkflow isn't given one explicitly.
func (s *Service) generateTitle(ctx context.Context, description string) (string, error) {
	resp, err := s.llmClient.Call(ctx, llm.LLMRequest{
		History: []models.ConversationItem{
			{Type: models.ItemTypeUserMessage, Content: description},
		},
		ModelConfig:      s.model,
		BaseInstructions: "Reply with a single short (under 8 words) title for this piece of work. No punctuation, no quotes, nothing else.",
	})
	if err != nil {
		return "", err
	}
	for _, item := range resp.Items {
		if item.Type == models.ItemTypeAssistantMessage && strings.TrimSpace(item.Content) != "" {
			return strings.TrimSpace(strings.Trim(item.Content, "\"")), nil
		}
	}
	return "Untitled workflow", nil
}

// loadProjectDocs discovers AGENTS.md/CLAUDE.md content between the repo
// root and worktreePath, for inclusion as the session's user-tier
// instructions. A missing git root or missing docs is not an error — the
// session just runs without project-local guidance.
func (s *Service) loadProjectDocs(worktreePath string) string {
	gitRoot, err := instructions.FindGitRoot(worktreePath)
	if err != nil || gitRoot == "" {
		gitRoot = worktreePath
	}
	docs, err := instructions.LoadProjectDocs(gitRoot, worktreePath)
	if err != nil {
		s.logger.Warn("load project docs", "worktree", worktreePath, "error", err)
		return ""
	}
	return docs
}

// applyToolOverrides removes any tool named in overrides.Disable from
// specs. overrides is nil when the resolved profile has no tool overrides
// for this provider/model/role combination.
func applyToolOverrides(specs []tools.ToolSpec, overrides *models.ToolOverrides) []tools.ToolSpec {
	if overrides == nil || len(overrides.Disable) == 0 {
		return specs
	}
	disabled := make(map[string]bool, len(overrides.Disable))
	for _, name := range overrides.Disable {
		disabled[name] = true
	}
	filtered := make([]tools.ToolSpec, 0, len(specs))
	for _, spec := range specs {
		if disabled[spec.Name] {
			continue
		}
		filtered = append(filtered, spec)
	}
	return filtered
}

// startRoleSession launches a multi-turn session for role: it runs an
// initial turn with prompt, then keeps the session alive, feeding it
// further user messages from its inbox, until the context is cancelled by
// a later StopSession call or TransitionStage. Each block-tool turn
// completion is handed to afterTurn in a detached goroutine so follow-up
// orchestration (which may itself stop this very session) never deadlocks
// against this session's own goroutine.
func (s *Service) startRoleSession(ctx context.Context, workflowID string, role domain.AgentRole, worktreePath string, pulseID *string, prompt string) (*domain.Session, error) {
	resolvedProfile := s.profiles.ResolveForRole(s.model.Provider, s.model.Model, string(role))
	roleModel := s.model
	if resolvedProfile.Temperature != nil {
		roleModel.Temperature = *resolvedProfile.Temperature
	}
	if resolvedProfile.MaxTokens != nil {
		roleModel.MaxTokens = *resolvedProfile.MaxTokens
	}
	if resolvedProfile.ContextWindow != nil {
		roleModel.ContextWindow = *resolvedProfile.ContextWindow
	}

	cfg := agentrunner.Config{
		ProjectRoot:           s.repoRoot,
		WorktreePath:          worktreePath,
		WorkflowID:            workflowID,
		ToolSpecs:             applyToolOverrides(tools.ToolsForRole(role), resolvedProfile.Tools),
		BaseInstructions:      instructions.BuildBaseInstructions(role, "", resolvedProfile.PromptSuffix),
		DeveloperInstructions: instructions.ComposeDeveloperInstructions("", worktreePath),
		UserInstructions:      s.loadProjectDocs(worktreePath),
		Model:                 roleModel,
	}
	// Research benefits most from up-to-date external context; every other
	// role relies on web_code_search's pluggable backend instead.
	if role == domain.RoleResearch {
		cfg.WebSearchMode = models.WebSearchAuto
	}

	inbox := make(chan string, 8)

	return s.sessions.StartSession(ctx, domain.ContextWorkflow, workflowID, role, pulseID, func(runCtx context.Context, sess *domain.Session) error {
		s.mu.Lock()
		s.inboxes[sess.ID] = inbox
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.inboxes, sess.ID)
			s.mu.Unlock()
		}()

		var history []models.ConversationItem
		msg := prompt
		turnIndex := 0
		for {
			outcome, err := s.runner.RunTurn(runCtx, sess, cfg, history, msg, turnIndex, false)
			if err != nil {
				return err
			}
			history = outcome.History
			turnIndex++
			if outcome.BlockToolName != "" {
				go s.afterTurn(workflowID, outcome)
			}

			select {
			case next, ok := <-inbox:
				if !ok {
					return nil
				}
				msg = next
			case <-runCtx.Done():
				return nil
			}
		}
	})
}

// SendMessage injects text as the next user turn on the active session for
// workflowID. Used both for direct user replies and for RequestChanges'
// feedback injection. Returns a conflict error if the session's inbox is
// full (a turn is still catching up); returns nil, no error, if there is no
// active session to deliver to.
func (s *Service) SendMessage(workflowID, text string) error {
	session := s.sessions.GetActive(domain.ContextWorkflow, workflowID)
	if session == nil {
		return nil
	}
	s.mu.Lock()
	inbox, ok := s.inboxes[session.ID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case inbox <- text:
		return nil
	default:
		return apperror.New(apperror.KindConflict, "session is still processing a prior turn")
	}
}

// afterTurn reacts to a block tool that ended a turn, dispatching to the
// right follow-up orchestration. Always runs in a goroutine detached from
// the session's own run loop (see startRoleSession) so that stopping a
// session from here never blocks on itself.
func (s *Service) afterTurn(workflowID string, outcome *agentrunner.Outcome) {
	ctx := context.Background()
	var err error

	switch outcome.BlockToolName {
	case "":
		return
	case "complete_preflight":
		err = s.handlePreflightComplete(ctx, workflowID)
	case "complete_pulse":
		commitMessage, _ := outcome.BlockToolArgs["summary"].(string)
		hasUnresolved, _ := outcome.BlockToolArgs["hasUnresolvedIssues"].(bool)
		err = s.HandlePulseCompletion(ctx, workflowID, commitMessage, hasUnresolved)
	case "ask_questions":
		s.bus.Broadcast(eventbus.Event{Type: eventbus.EventQuestionsAsked, Payload: map[string]any{
			"workflow_id": workflowID,
			"questions":   outcome.BlockToolArgs["questions"],
		}})
	case "request_extension":
		s.logger.Info("workflow requested a turn extension", "workflow_id", workflowID, "reason", outcome.BlockToolArgs["reason"])
	default:
		var artifactID string
		artifactID, err = s.persistArtifact(ctx, workflowID, outcome.BlockToolName, outcome.BlockToolArgs)
		if err == nil {
			_, err = s.HandleToolResult(ctx, workflowID, outcome.BlockToolName, artifactID)
		}
	}

	if err != nil {
		s.logger.Error("post-turn orchestration failed", "workflow_id", workflowID, "tool", outcome.BlockToolName, "error", err)
		_ = s.ErrorWorkflow(ctx, workflowID, err)
	}
}

// HandleToolResult processes a stage-completion tool outside the deferred
// (complete_preflight/complete_pulse) set: submit_scope, submit_research,
// submit_plan, and complete_review all set awaiting_approval and the
// pending artifact type, then wait for ApproveArtifact or RequestChanges.
func (s *Service) HandleToolResult(ctx context.Context, workflowID, toolName, artifactID string) (*ToolResult, error) {
	if artifactType, ok := approvalArtifactTypes[toolName]; ok {
		if err := s.workflows.SetAwaitingApproval(ctx, workflowID, artifactType); err != nil {
			return nil, fmt.Errorf("set awaiting approval: %w", err)
		}
		s.bus.Broadcast(eventbus.Event{Type: eventbus.EventWorkflowApprovalNeeded, Payload: map[string]any{
			"workflow_id":   workflowID,
			"artifact_type": artifactType,
			"artifact_id":   artifactID,
		}})
		return &ToolResult{AwaitingApproval: true, ArtifactType: artifactType}, nil
	}
	if targetStage, ok := autoTransitionTargets[toolName]; ok {
		if err := s.TransitionStage(ctx, workflowID, targetStage); err != nil {
			return nil, err
		}
		return &ToolResult{Transitioned: true}, nil
	}
	return &ToolResult{}, nil
}

// persistArtifact turns a stage-completion tool call's arguments into the
// persisted artifact row it represents, since block tools are never
// dispatched through a ToolHandler (see internal/agentrunner) and so never
// get the chance to write to the ArtifactRepository themselves. Returns the
// artifact's ID ("" for tools this doesn't apply to).
func (s *Service) persistArtifact(ctx context.Context, workflowID, toolName string, args map[string]interface{}) (string, error) {
	switch toolName {
	case "submit_scope":
		id := uuid.NewString()
		card := &domain.ScopeCard{
			ID:              id,
			WorkflowID:      workflowID,
			Summary:         stringArg(args, "summary"),
			RecommendedPath: domain.RecommendedPath(stringArg(args, "recommendedPath")),
			Status:          domain.ArtifactPending,
			CreatedAt:       time.Now().UTC(),
		}
		if err := s.artifacts.SaveScopeCard(ctx, card); err != nil {
			return "", fmt.Errorf("save scope card: %w", err)
		}
		return id, nil
	case "submit_research":
		id := uuid.NewString()
		card := &domain.ResearchCard{
			ID:         id,
			WorkflowID: workflowID,
			Findings:   stringArg(args, "findings"),
			Status:     domain.ArtifactPending,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.artifacts.SaveResearchCard(ctx, card); err != nil {
			return "", fmt.Errorf("save research card: %w", err)
		}
		return id, nil
	case "submit_plan":
		id := uuid.NewString()
		plan := &domain.Plan{
			ID:         id,
			WorkflowID: workflowID,
			Pulses:     parsePulseDescriptors(args["pulses"]),
			Status:     domain.ArtifactPending,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.artifacts.SavePlan(ctx, plan); err != nil {
			return "", fmt.Errorf("save plan: %w", err)
		}
		return id, nil
	case "complete_review":
		card, err := s.artifacts.LatestReviewCard(ctx, workflowID)
		if err != nil {
			return "", fmt.Errorf("load review card: %w", err)
		}
		rec := domain.ReviewRecommendation(stringArg(args, "recommendation"))
		commitMessage := stringArg(args, "suggestedCommitMessage")
		if err := s.artifacts.SetReviewCardRecommendation(ctx, card.ID, rec, commitMessage); err != nil {
			return "", fmt.Errorf("set review recommendation: %w", err)
		}
		return card.ID, nil
	default:
		return "", nil
	}
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func stringSliceArg(raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if str, ok := it.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// parsePulseDescriptors converts submit_plan's "pulses" argument (a JSON
// array of objects) into typed PulseDescriptors, assigning PlannedIndex by
// array position.
func parsePulseDescriptors(raw interface{}) []domain.PulseDescriptor {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	descriptors := make([]domain.PulseDescriptor, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id := stringArg(obj, "id")
		if id == "" {
			id = uuid.NewString()
		}
		descriptors = append(descriptors, domain.PulseDescriptor{
			ID:              id,
			Title:           stringArg(obj, "title"),
			Description:     stringArg(obj, "description"),
			ExpectedChanges: stringSliceArg(obj["expectedChanges"]),
			EstimatedSize:   stringArg(obj, "estimatedSize"),
			DependsOn:       stringSliceArg(obj["dependsOn"]),
			PlannedIndex:    i,
		})
	}
	return descriptors
}

// HandleTurnCompletion handles the deferred turn-completion tools that
// can't run their follow-up through HandleToolResult mid-stream: today
// only complete_preflight, since complete_pulse is routed directly from
// afterTurn (it needs the tool call's own arguments). Exposed separately
// from afterTurn so callers that already have the full tool-name list for
// a turn (e.g. a resumed/replayed turn) can drive the same logic.
func (s *Service) HandleTurnCompletion(ctx context.Context, workflowID string, toolNames []string) error {
	for _, name := range toolNames {
		if name == "complete_preflight" {
			return s.handlePreflightComplete(ctx, workflowID)
		}
	}
	return nil
}

// handlePreflightComplete marks the workflow's preflight setup done and
// starts the first pulse, or transitions straight to review if the plan
// produced no pulses at all.
func (s *Service) handlePreflightComplete(ctx context.Context, workflowID string) error {
	if err := s.pulses.CompletePreflight(ctx, workflowID); err != nil {
		return fmt.Errorf("complete preflight: %w", err)
	}
	return s.startNextPulseOrReview(ctx, workflowID)
}

// startNextPulseOrReview stops the current (preflight or pulse) session,
// starts the next proposed pulse's execution session if one exists, or
// transitions to review if the plan is exhausted.
func (s *Service) startNextPulseOrReview(ctx context.Context, workflowID string) error {
	pulse, err := s.pulses.StartNextPulse(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("start next pulse: %w", err)
	}
	s.sessions.StopSession(domain.ContextWorkflow, workflowID)

	if pulse == nil {
		return s.TransitionStage(ctx, workflowID, domain.StageReview)
	}

	worktreePath := s.worktrees.GetWorktreePath(workflowID)
	session, err := s.startRoleSession(ctx, workflowID, domain.RoleExecution, worktreePath, &pulse.ID, executionPrompt(pulse))
	if err != nil {
		return fmt.Errorf("start execution session for pulse %s: %w", pulse.ID, err)
	}
	return s.workflows.SetCurrentSession(ctx, workflowID, &session.ID)
}

func executionPrompt(pulse *domain.Pulse) string {
	return fmt.Sprintf("Implement this pulse, then call complete_pulse.\n\n%s", pulse.Description)
}

// HandlePulseCompletion records the execution agent's own report of a
// pulse's completion (commitMessage/hasUnresolvedIssues come straight from
// the complete_pulse tool call's arguments) and moves on to the next pulse
// or to review.
//
// The pulse's actual git commit is made by the execution agent's own shell
// tool calls inside the worktree; commitMessage here is accepted for
// logging and event payloads only, since domain.Pulse carries no
// CommitMessage field to persist it into (see DESIGN.md).
func (s *Service) HandlePulseCompletion(ctx context.Context, workflowID, commitMessage string, hasUnresolvedIssues bool) error {
	running, err := s.pulses.GetRunningPulse(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("get running pulse: %w", err)
	}
	if running == nil {
		s.logger.Warn("complete_pulse with no running pulse", "workflow_id", workflowID)
		return nil
	}

	hasMore, err := s.pulses.CompletePulse(ctx, workflowID, running.ID, hasUnresolvedIssues)
	if err != nil {
		return fmt.Errorf("complete pulse %s: %w", running.ID, err)
	}
	s.logger.Info("pulse completed", "workflow_id", workflowID, "pulse_id", running.ID, "commit_message", commitMessage, "has_unresolved_issues", hasUnresolvedIssues, "has_more", hasMore)

	s.sessions.StopSession(domain.ContextWorkflow, workflowID)

	if !hasMore {
		return s.TransitionStage(ctx, workflowID, domain.StageReview)
	}

	next, err := s.pulses.StartNextPulse(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("start next pulse: %w", err)
	}
	if next == nil {
		return s.TransitionStage(ctx, workflowID, domain.StageReview)
	}

	worktreePath := s.worktrees.GetWorktreePath(workflowID)
	session, err := s.startRoleSession(ctx, workflowID, domain.RoleExecution, worktreePath, &next.ID, executionPrompt(next))
	if err != nil {
		return fmt.Errorf("start execution session for pulse %s: %w", next.ID, err)
	}
	return s.workflows.SetCurrentSession(ctx, workflowID, &session.ID)
}

// HandlePulseFailure marks the running pulse failed and moves the workflow
// straight to review, where the failure surfaces as an unresolved issue for
// the human reviewer rather than silently blocking the pipeline.
func (s *Service) HandlePulseFailure(ctx context.Context, workflowID, reason string) error {
	running, err := s.pulses.GetRunningPulse(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("get running pulse: %w", err)
	}
	if running == nil {
		return nil
	}
	if err := s.pulses.FailPulse(ctx, running.ID, reason); err != nil {
		return fmt.Errorf("fail pulse %s: %w", running.ID, err)
	}
	s.sessions.StopSession(domain.ContextWorkflow, workflowID)
	return s.TransitionStage(ctx, workflowID, domain.StageReview)
}

// RetryPulse stops whatever is running for the workflow, increments the
// running pulse's rejection count, and either restarts it in a new
// execution session (while the count is within
// pulseorchestrator.MaxRejections) or fails it outright and moves to
// review. pulseID must be the workflow's running pulse. Non-blocking: the
// replacement session is launched before RetryPulse returns.
func (s *Service) RetryPulse(ctx context.Context, workflowID, pulseID string) error {
	s.sessions.StopSession(domain.ContextWorkflow, workflowID)
	// Give the stopped session's goroutine a moment to fully unwind before
	// the pulse orchestrator's own state is re-read, matching spec.md §5's
	// note that cancellation propagation is not instantaneous.
	time.Sleep(500 * time.Millisecond)

	running, err := s.pulses.GetRunningPulse(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("get running pulse: %w", err)
	}
	if running == nil || running.ID != pulseID {
		return apperror.New(apperror.KindValidation, fmt.Sprintf("pulse %s is not running", pulseID))
	}

	count, exceeded, err := s.pulses.IncrementRejectionCount(ctx, pulseID)
	if err != nil {
		return fmt.Errorf("increment rejection count: %w", err)
	}
	if exceeded {
		if err := s.pulses.FailPulse(ctx, pulseID, fmt.Sprintf("exceeded %d rejections", count)); err != nil {
			return fmt.Errorf("fail pulse %s: %w", pulseID, err)
		}
		return s.TransitionStage(ctx, workflowID, domain.StageReview)
	}

	session, err := s.startRoleSession(ctx, workflowID, domain.RoleExecution, s.worktrees.GetWorktreePath(workflowID), &pulseID, executionPrompt(running))
	if err != nil {
		return fmt.Errorf("restart execution session for pulse %s: %w", pulseID, err)
	}
	return s.workflows.SetCurrentSession(ctx, workflowID, &session.ID)
}

// ApproveArtifact approves whatever artifact the workflow is currently
// awaiting approval on and advances the stage pipeline accordingly:
// - ScopeCard: quick path (recommended or forced via opts.Path) skips
//   straight to the pulse sub-pipeline with a synthesized single-pulse
//   plan; otherwise transitions to researching.
// - ResearchCard: transitions to planning.
// - Plan: transitions to in_progress (preflight).
// - ReviewCard: runs merge finalization, then transitions to done.
func (s *Service) ApproveArtifact(ctx context.Context, workflowID string, opts ApproveOptions) error {
	workflow, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("approve artifact: %w", err)
	}
	if !workflow.AwaitingApproval {
		return apperror.New(apperror.KindValidation, "workflow is not awaiting approval")
	}

	switch workflow.PendingArtifactType {
	case domain.ArtifactScopeCard:
		return s.approveScopeCard(ctx, workflow, opts)
	case domain.ArtifactResearch:
		return s.approveSimple(ctx, workflow, domain.ArtifactResearch, domain.StagePlanning)
	case domain.ArtifactPlan:
		return s.approvePlan(ctx, workflow)
	case domain.ArtifactReviewCard:
		return s.approveReviewCard(ctx, workflow, opts)
	default:
		return apperror.New(apperror.KindInternal, fmt.Sprintf("unknown pending artifact type %q", workflow.PendingArtifactType))
	}
}

func (s *Service) approveSimple(ctx context.Context, workflow *domain.Workflow, artifactType domain.ArtifactType, nextStage domain.WorkflowStage) error {
	if err := s.setLatestArtifactStatus(ctx, workflow.ID, artifactType, domain.ArtifactApproved); err != nil {
		return err
	}
	if err := s.workflows.ClearAwaitingApproval(ctx, workflow.ID); err != nil {
		return fmt.Errorf("clear awaiting approval: %w", err)
	}
	return s.TransitionStage(ctx, workflow.ID, nextStage)
}

func (s *Service) approveScopeCard(ctx context.Context, workflow *domain.Workflow, opts ApproveOptions) error {
	card, err := s.artifacts.LatestScopeCard(ctx, workflow.ID)
	if err != nil {
		return fmt.Errorf("load scope card: %w", err)
	}
	if err := s.artifacts.SetScopeCardStatus(ctx, card.ID, domain.ArtifactApproved); err != nil {
		return fmt.Errorf("approve scope card: %w", err)
	}
	if err := s.workflows.ClearAwaitingApproval(ctx, workflow.ID); err != nil {
		return fmt.Errorf("clear awaiting approval: %w", err)
	}

	path := card.RecommendedPath
	if opts.Path != "" {
		path = opts.Path
	}
	if path != domain.PathQuick {
		return s.TransitionStage(ctx, workflow.ID, domain.StageResearching)
	}
	return s.startQuickPath(ctx, workflow, card)
}

// startQuickPath skips researching/planning, synthesizing a single-pulse
// plan directly from the ScopeCard and entering the in_progress
// sub-pipeline at preflight. Mirrors spec.md §4.9's quick path.
func (s *Service) startQuickPath(ctx context.Context, workflow *domain.Workflow, card *domain.ScopeCard) error {
	if err := s.workflows.SetSkippedStages(ctx, workflow.ID, []domain.WorkflowStage{domain.StageResearching, domain.StagePlanning}); err != nil {
		return fmt.Errorf("set skipped stages: %w", err)
	}

	baseBranch := workflow.BaseBranch
	if baseBranch == "" {
		baseBranch = s.baseBranch
	}
	init, err := s.pulses.InitializePulsing(ctx, s.repoRoot, workflow.ID, baseBranch)
	if err != nil {
		return fmt.Errorf("initialize pulsing: %w", err)
	}
	if err := s.workflows.SetBaseBranch(ctx, workflow.ID, baseBranch); err != nil {
		return fmt.Errorf("set base branch: %w", err)
	}

	descriptors := pulseorchestrator.SynthesizeSinglePulsePlan(card)
	if err := s.pulses.CreatePulsesFromPlan(ctx, workflow.ID, descriptors); err != nil {
		return fmt.Errorf("create pulses from synthesized plan: %w", err)
	}

	return s.enterInProgress(ctx, workflow.ID, init.WorktreePath)
}

func (s *Service) approvePlan(ctx context.Context, workflow *domain.Workflow) error {
	plan, err := s.artifacts.LatestPlan(ctx, workflow.ID)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	if err := s.artifacts.SetPlanStatus(ctx, plan.ID, domain.ArtifactApproved); err != nil {
		return fmt.Errorf("approve plan: %w", err)
	}
	if err := s.workflows.ClearAwaitingApproval(ctx, workflow.ID); err != nil {
		return fmt.Errorf("clear awaiting approval: %w", err)
	}

	baseBranch := workflow.BaseBranch
	if baseBranch == "" {
		baseBranch = s.baseBranch
	}
	init, err := s.pulses.InitializePulsing(ctx, s.repoRoot, workflow.ID, baseBranch)
	if err != nil {
		return fmt.Errorf("initialize pulsing: %w", err)
	}
	if err := s.workflows.SetBaseBranch(ctx, workflow.ID, baseBranch); err != nil {
		return fmt.Errorf("set base branch: %w", err)
	}
	if err := s.pulses.CreatePulsesFromPlan(ctx, workflow.ID, plan.Pulses); err != nil {
		return fmt.Errorf("create pulses from plan: %w", err)
	}

	return s.enterInProgress(ctx, workflow.ID, init.WorktreePath)
}

// enterInProgress starts the preflight session directly (bypassing
// TransitionStage's generic session-start, since the preflight session
// needs the freshly-created worktree path) and persists the stage change.
func (s *Service) enterInProgress(ctx context.Context, workflowID, worktreePath string) error {
	session, err := s.startRoleSession(ctx, workflowID, domain.RolePreflight, worktreePath, nil, preflightPrompt)
	if err != nil {
		return fmt.Errorf("start preflight session: %w", err)
	}
	if err := s.pulses.CreatePreflightSetup(ctx, workflowID, session.ID); err != nil {
		return fmt.Errorf("create preflight setup: %w", err)
	}
	if err := s.workflows.TransitionStage(ctx, workflowID, domain.StageInProgress, &session.ID); err != nil {
		return fmt.Errorf("transition to in_progress: %w", err)
	}
	s.bus.Broadcast(eventbus.Event{Type: eventbus.EventWorkflowStageChanged, Payload: map[string]any{"workflow_id": workflowID, "stage": domain.StageInProgress}})
	return nil
}

const preflightPrompt = "Establish a baseline for this worktree: run the project's build, lint, and test commands, and record any pre-existing failures with record_baseline so later pulses aren't blamed for them. Call complete_preflight when done."

func (s *Service) approveReviewCard(ctx context.Context, workflow *domain.Workflow, opts ApproveOptions) error {
	card, err := s.artifacts.LatestReviewCard(ctx, workflow.ID)
	if err != nil {
		return fmt.Errorf("load review card: %w", err)
	}

	strategy := opts.MergeStrategy
	if strategy == "" {
		strategy = gitworktree.StrategySquash
	}

	worktreePath := s.worktrees.GetWorktreePath(workflow.ID)
	workflowBranch := s.worktrees.GetWorkflowBranch(workflow.ID)
	baseBranch := workflow.BaseBranch
	if baseBranch == "" {
		baseBranch = s.baseBranch
	}

	diff, err := gitworktree.GetDiff(ctx, worktreePath, baseBranch)
	if err != nil {
		return fmt.Errorf("compute diff for review card: %w", err)
	}
	if err := s.artifacts.SetReviewCardDiff(ctx, card.ID, diff); err != nil {
		return fmt.Errorf("persist review diff: %w", err)
	}

	result, err := s.worktrees.MergeWorkflowBranch(ctx, s.repoRoot, workflowBranch, baseBranch, strategy, card.SuggestedCommitMessage)
	if err != nil {
		if _, checkoutErr := gitworktree.GetCurrentBranch(ctx, worktreePath); checkoutErr == nil {
			_ = s.worktrees.CheckoutInWorktree(ctx, worktreePath, workflowBranch)
		}
		return fmt.Errorf("failed to merge workflow branch into %s: %w", baseBranch, err)
	}

	// A {success:false} merge result without an error is a legitimate git
	// outcome (nothing to merge), not a fault — proceed to finalize.
	_ = result

	if err := s.artifacts.SetReviewCardStatus(ctx, card.ID, domain.ArtifactApproved); err != nil {
		return fmt.Errorf("approve review card: %w", err)
	}
	if err := s.workflows.ClearAwaitingApproval(ctx, workflow.ID); err != nil {
		return fmt.Errorf("clear awaiting approval: %w", err)
	}

	if err := s.worktrees.CleanupWorkflow(ctx, s.repoRoot, workflow.ID); err != nil {
		s.logger.Warn("cleanup workflow worktree failed", "workflow_id", workflow.ID, "error", err)
	}
	s.shellApproval.CleanupWorkflow(workflow.ID)

	return s.TransitionStage(ctx, workflow.ID, domain.StageDone)
}

func (s *Service) setLatestArtifactStatus(ctx context.Context, workflowID string, artifactType domain.ArtifactType, status domain.ArtifactStatus) error {
	switch artifactType {
	case domain.ArtifactResearch:
		card, err := s.artifacts.LatestResearchCard(ctx, workflowID)
		if err != nil {
			return fmt.Errorf("load research card: %w", err)
		}
		if err := s.artifacts.SetResearchCardStatus(ctx, card.ID, status); err != nil {
			return fmt.Errorf("set research card status: %w", err)
		}
		return nil
	default:
		return apperror.New(apperror.KindInternal, fmt.Sprintf("setLatestArtifactStatus: unsupported artifact type %q", artifactType))
	}
}

// RequestChanges clears the approval gate and reinjects feedback as the
// next user turn on the session that's awaiting approval, asking it to
// revise its submission. Per spec.md §4.6/§4.8, the session is first
// restored from the DB if it isn't already in memory (the process may
// have restarted since the artifact was submitted); if it can't be
// restored (gone, or no longer persisted as active), this logs and
// returns without error, matching the edge-case table's "Session not
// found on restore: getOrRestoreSession returns empty; requestChanges
// logs and exits."
func (s *Service) RequestChanges(ctx context.Context, workflowID, feedback string) error {
	workflow, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("request changes: %w", err)
	}
	if !workflow.AwaitingApproval {
		return apperror.New(apperror.KindValidation, "workflow is not awaiting approval")
	}
	if err := s.workflows.ClearAwaitingApproval(ctx, workflowID); err != nil {
		return fmt.Errorf("clear awaiting approval: %w", err)
	}

	var restored *domain.Session
	if workflow.CurrentSessionID != nil {
		restored, err = s.sessions.GetOrRestoreSession(ctx, *workflow.CurrentSessionID)
		if err != nil {
			return fmt.Errorf("request changes: %w", err)
		}
	}
	if restored == nil {
		s.logger.Warn("request changes: no active session to resume", "workflow_id", workflowID)
		return nil
	}

	return s.SendMessage(workflowID, formatFeedback(feedback))
}

func formatFeedback(feedback string) string {
	return "The human reviewer requested changes:\n\n" + feedback + "\n\nRevise your submission accordingly."
}

// TransitionStage stops whatever session is active for workflowID, starts
// the session for newStage's owning role, and persists the stage change
// atomically with the new current session id. newStage=done stops the
// current session and persists without starting anything new.
func (s *Service) TransitionStage(ctx context.Context, workflowID string, newStage domain.WorkflowStage) error {
	s.sessions.StopSession(domain.ContextWorkflow, workflowID)

	if newStage == domain.StageDone {
		if err := s.workflows.TransitionStage(ctx, workflowID, domain.StageDone, nil); err != nil {
			return fmt.Errorf("transition to done: %w", err)
		}
		s.bus.Broadcast(eventbus.Event{Type: eventbus.EventWorkflowCompleted, Payload: workflowID})
		return nil
	}

	role, ok := domain.StageOwner[newStage]
	if !ok {
		return apperror.New(apperror.KindInternal, fmt.Sprintf("no agent role owns stage %q", newStage))
	}

	if newStage == domain.StageReview {
		card := &domain.ReviewCard{ID: uuid.NewString(), WorkflowID: workflowID, Status: domain.ArtifactPending, CreatedAt: time.Now().UTC()}
		if err := s.artifacts.CreateReviewCard(ctx, card); err != nil {
			return fmt.Errorf("create review card: %w", err)
		}
	}

	prompt, err := s.buildStagePrompt(ctx, workflowID, newStage)
	if err != nil {
		return fmt.Errorf("build prompt for stage %q: %w", newStage, err)
	}

	var worktreePath string
	if newStage == domain.StageInProgress {
		worktreePath = s.worktrees.GetWorktreePath(workflowID)
	}

	session, err := s.startRoleSession(ctx, workflowID, role, worktreePath, nil, prompt)
	if err != nil {
		return fmt.Errorf("start session for stage %q: %w", newStage, err)
	}
	if err := s.workflows.TransitionStage(ctx, workflowID, newStage, &session.ID); err != nil {
		return fmt.Errorf("persist transition to %q: %w", newStage, err)
	}
	s.bus.Broadcast(eventbus.Event{Type: eventbus.EventWorkflowStageChanged, Payload: map[string]any{"workflow_id": workflowID, "stage": newStage}})
	return nil
}

// buildStagePrompt composes the initial user turn for newStage's session,
// including whatever prior approved artifact is relevant context.
func (s *Service) buildStagePrompt(ctx context.Context, workflowID string, newStage domain.WorkflowStage) (string, error) {
	workflow, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Workflow: %s\n\n%s\n", workflow.Title, workflow.Description)

	switch newStage {
	case domain.StageResearching:
		if card, err := s.artifacts.LatestScopeCard(ctx, workflowID); err == nil {
			fmt.Fprintf(&b, "\nApproved scope:\n%s\n", card.Summary)
		}
	case domain.StagePlanning:
		if card, err := s.artifacts.LatestResearchCard(ctx, workflowID); err == nil {
			fmt.Fprintf(&b, "\nResearch findings:\n%s\n", card.Findings)
		}
	case domain.StageReview:
		if plan, err := s.artifacts.LatestPlan(ctx, workflowID); err == nil {
			fmt.Fprintf(&b, "\nPlanned pulses: %d\n", len(plan.Pulses))
		}
	}

	return b.String(), nil
}

// ErrorWorkflow marks workflowID's current session errored (if any) and
// broadcasts workflow:error. It never returns an error to its caller and
// swallows "not found" so callers never need to check existence first.
func (s *Service) ErrorWorkflow(ctx context.Context, workflowID string, cause error) error {
	workflow, err := s.workflows.GetByID(ctx, workflowID)
	if apperror.IsKind(err, apperror.KindNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Error("error workflow: load failed", "workflow_id", workflowID, "error", err)
		return nil
	}
	if workflow.CurrentSessionID != nil {
		_ = s.sessions.ErrorSession(ctx, *workflow.CurrentSessionID, cause)
	}
	s.bus.Broadcast(eventbus.Event{Type: eventbus.EventWorkflowError, Payload: map[string]any{"workflow_id": workflowID, "error": cause.Error()}})
	return nil
}
