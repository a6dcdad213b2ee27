// Package agentrunner executes one session turn: it calls the LLM, persists
// every message and tool-call segment as it arrives, dispatches
// non-block tool calls through internal/tools, and reports which
// stage-completion ("block") tool — if any — ended the turn so the
// workflow orchestrator can act on it.
//
// Grounded on AgenticWorkflow's multi-turn loop (internal/workflow/
// agentic.go, turn.go, tool_execution.go): segment-delimited streaming,
// tool validation, and persistence of turns/messages/thoughts/tool-calls.
// The teacher's Temporal activity dispatch (executeToolsInParallel)
// becomes direct goroutine-based dispatch against internal/tools; mutating
// tool calls are serialized within a turn while read-only calls run
// concurrently, per internal/tools.ToolHandler's documented contract.
package agentrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/eventbus"
	"github.com/forgepulse/agentflow/internal/llm"
	"github.com/forgepulse/agentflow/internal/models"
	"github.com/forgepulse/agentflow/internal/repository"
	"github.com/forgepulse/agentflow/internal/tools"
)

// maxIterations bounds the LLM-call/tool-call loop within a single turn, so
// a misbehaving model can't spin the runner forever.
const maxIterations = 50

// Config configures one RunTurn invocation: the worktree/project root the
// tool calls are confined to, the tool specs and instructions offered to
// the model, and the model configuration itself.
type Config struct {
	ProjectRoot           string
	WorktreePath          string
	WorkflowID            string
	ToolSpecs             []tools.ToolSpec
	BaseInstructions      string
	DeveloperInstructions string
	UserInstructions      string
	Model                 models.ModelConfig
	WebSearchMode         models.WebSearchMode
}

// Outcome is what RunTurn learned about how the turn ended.
type Outcome struct {
	TurnID        string
	History       []models.ConversationItem
	BlockToolName string                 // non-empty if a block tool ended the turn
	BlockToolArgs map[string]interface{} // arguments of that block tool call
	TokenUsage    models.TokenUsage
}

// Runner executes turns against an LLM client and a tool router,
// persisting every segment through a ConversationRepository and
// broadcasting progress on the event bus.
type Runner struct {
	llmClient     llm.LLMClient
	router        *tools.ToolRouter
	conversations repository.ConversationRepository
	bus           *eventbus.Bus
}

// New creates a turn runner.
func New(llmClient llm.LLMClient, router *tools.ToolRouter, conversations repository.ConversationRepository, bus *eventbus.Bus) *Runner {
	return &Runner{llmClient: llmClient, router: router, conversations: conversations, bus: bus}
}

// RunTurn drives one user message through to either a block-tool
// turn-completion marker or a natural stop, persisting everything along
// the way. turnIndex must be the next strictly-increasing index for the
// session. hidden marks a turn that should not appear in user-facing
// history (e.g. an injected preflight instruction).
func (r *Runner) RunTurn(ctx context.Context, session *domain.Session, cfg Config, history []models.ConversationItem, userMessage string, turnIndex int, hidden bool) (*Outcome, error) {
	turn := &domain.Turn{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		TurnIndex: turnIndex,
		Role:      domain.TurnRoleAssistant,
		Status:    domain.TurnStreaming,
		Hidden:    hidden,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.conversations.CreateTurn(ctx, turn); err != nil {
		return nil, fmt.Errorf("create turn: %w", err)
	}
	r.bus.Broadcast(eventbus.Event{Type: eventbus.EventTurnStarted, Payload: turn})

	if userMessage != "" {
		history = append(history, models.ConversationItem{Type: models.ItemTypeUserMessage, Content: userMessage})
	}

	blockNames := blockToolSet()
	messageIndex := 0
	toolIndex := 0
	var totalUsage models.TokenUsage

	for iteration := 0; iteration < maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			_ = r.conversations.ErrorTurn(ctx, turn.ID, err.Error())
			r.bus.Broadcast(eventbus.Event{Type: eventbus.EventSessionError, Payload: map[string]any{"session_id": session.ID, "error": err.Error()}})
			return nil, err
		}

		resp, err := r.llmClient.Call(ctx, llm.LLMRequest{
			History:               history,
			ModelConfig:           cfg.Model,
			ToolSpecs:             cfg.ToolSpecs,
			BaseInstructions:      cfg.BaseInstructions,
			DeveloperInstructions: cfg.DeveloperInstructions,
			UserInstructions:      cfg.UserInstructions,
			WebSearchMode:         cfg.WebSearchMode,
		})
		if err != nil {
			_ = r.conversations.ErrorTurn(ctx, turn.ID, err.Error())
			r.bus.Broadcast(eventbus.Event{Type: eventbus.EventSessionError, Payload: map[string]any{"session_id": session.ID, "error": err.Error()}})
			return nil, fmt.Errorf("llm call: %w", err)
		}
		totalUsage.PromptTokens += resp.TokenUsage.PromptTokens
		totalUsage.CompletionTokens += resp.TokenUsage.CompletionTokens
		totalUsage.TotalTokens += resp.TokenUsage.TotalTokens

		var pendingCalls []models.ToolCall
		for _, item := range resp.Items {
			switch item.Type {
			case models.ItemTypeAssistantMessage:
				msg := &domain.Message{ID: uuid.NewString(), TurnID: turn.ID, MessageIndex: messageIndex, Content: item.Content, CreatedAt: time.Now().UTC()}
				messageIndex++
				if err := r.conversations.SaveMessage(ctx, msg); err != nil {
					return nil, fmt.Errorf("save message: %w", err)
				}
				r.bus.Broadcast(eventbus.Event{Type: eventbus.EventTurnSegmentComplete, Payload: msg})
			case models.ItemTypeToolCall:
				pendingCalls = append(pendingCalls, item.ToolCalls...)
			}
		}

		history = append(history, resp.Items...)

		if len(pendingCalls) == 0 {
			if err := r.conversations.CompleteTurn(ctx, turn.ID, totalUsage.PromptTokens, totalUsage.CompletionTokens); err != nil {
				return nil, fmt.Errorf("complete turn: %w", err)
			}
			r.bus.Broadcast(eventbus.Event{Type: eventbus.EventTurnCompleted, Payload: turn.ID})
			return &Outcome{TurnID: turn.ID, History: history, TokenUsage: totalUsage}, nil
		}

		if blockCall, blockArgs, ok := firstBlockCall(pendingCalls, blockNames); ok {
			tc := &domain.ToolCall{
				ID: uuid.NewString(), TurnID: turn.ID, ToolIndex: toolIndex, ToolName: blockCall.Name,
				Input: argsJSON(blockCall.Arguments), Status: domain.ToolCompleted, StartedAt: time.Now().UTC(),
			}
			toolIndex++
			now := time.Now().UTC()
			tc.EndedAt = &now
			if err := r.conversations.RecordToolStart(ctx, tc); err != nil {
				return nil, fmt.Errorf("record block tool call: %w", err)
			}
			if err := r.conversations.RecordToolComplete(ctx, tc.ID, "deferred to orchestrator", domain.ToolCompleted); err != nil {
				return nil, fmt.Errorf("complete block tool call: %w", err)
			}
			history = append(history, models.ConversationItem{Type: models.ItemTypeToolResult, ToolCallID: blockCall.ID, ToolOutput: "acknowledged"})
			if err := r.conversations.CompleteTurn(ctx, turn.ID, totalUsage.PromptTokens, totalUsage.CompletionTokens); err != nil {
				return nil, fmt.Errorf("complete turn: %w", err)
			}
			r.bus.Broadcast(eventbus.Event{Type: eventbus.EventTurnCompleted, Payload: turn.ID})
			return &Outcome{TurnID: turn.ID, History: history, BlockToolName: blockCall.Name, BlockToolArgs: blockArgs, TokenUsage: totalUsage}, nil
		}

		results, err := r.dispatchToolCalls(ctx, session, cfg, turn.ID, &toolIndex, pendingCalls)
		if err != nil {
			_ = r.conversations.ErrorTurn(ctx, turn.ID, err.Error())
			return nil, err
		}
		history = append(history, results...)
	}

	_ = r.conversations.ErrorTurn(ctx, turn.ID, "exceeded maximum tool-call iterations")
	return nil, fmt.Errorf("turn exceeded %d iterations without completing", maxIterations)
}

// dispatchToolCalls runs read-only calls concurrently and mutating calls
// one at a time, in call order, and returns their results as
// ItemTypeToolResult conversation items in the original call order.
func (r *Runner) dispatchToolCalls(ctx context.Context, session *domain.Session, cfg Config, turnID string, toolIndex *int, calls []models.ToolCall) ([]models.ConversationItem, error) {
	results := make([]models.ConversationItem, len(calls))

	invoke := func(i int, call models.ToolCall) models.ConversationItem {
		tc := &domain.ToolCall{
			ID: uuid.NewString(), TurnID: turnID, ToolIndex: *toolIndex, ToolName: call.Name,
			Input: argsJSON(call.Arguments), Status: domain.ToolRunning, StartedAt: time.Now().UTC(),
		}
		*toolIndex++
		if err := r.conversations.RecordToolStart(ctx, tc); err != nil {
			return models.ConversationItem{Type: models.ItemTypeToolResult, ToolCallID: call.ID, ToolError: err.Error()}
		}
		r.bus.Broadcast(eventbus.Event{Type: eventbus.EventTurnToolStarted, Payload: tc})

		invocation := &tools.ToolInvocation{
			CallID:       call.ID,
			ToolName:     call.Name,
			Arguments:    call.Arguments,
			ProjectRoot:  cfg.ProjectRoot,
			WorktreePath: cfg.WorktreePath,
			WorkflowID:   cfg.WorkflowID,
			SessionID:    session.ID,
		}
		output, err := r.router.DispatchToolCall(ctx, invocation)

		status := domain.ToolCompleted
		var item models.ConversationItem
		if err != nil {
			status = domain.ToolError
			item = models.ConversationItem{Type: models.ItemTypeToolResult, ToolCallID: call.ID, ToolError: err.Error()}
			_ = r.conversations.RecordToolComplete(ctx, tc.ID, err.Error(), status)
		} else {
			content := output.Content
			if output.Success != nil && !*output.Success {
				status = domain.ToolError
			}
			item = models.ConversationItem{Type: models.ItemTypeToolResult, ToolCallID: call.ID, ToolOutput: content}
			_ = r.conversations.RecordToolComplete(ctx, tc.ID, content, status)
		}
		tc.Status = status
		r.bus.Broadcast(eventbus.Event{Type: eventbus.EventTurnToolCompleted, Payload: tc})
		return item
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		handler, err := r.router.Registry().GetHandler(call.Name)
		if err != nil {
			results[i] = models.ConversationItem{Type: models.ItemTypeToolResult, ToolCallID: call.ID, ToolError: err.Error()}
			continue
		}
		invocation := &tools.ToolInvocation{Arguments: call.Arguments}
		if handler.IsMutating(invocation) {
			results[i] = invoke(i, call)
			continue
		}
		wg.Add(1)
		go func(i int, call models.ToolCall) {
			defer wg.Done()
			results[i] = invoke(i, call)
		}(i, call)
	}
	wg.Wait()

	return results, nil
}

func firstBlockCall(calls []models.ToolCall, blockNames map[string]bool) (models.ToolCall, map[string]interface{}, bool) {
	for _, c := range calls {
		if blockNames[c.Name] {
			return c, c.Arguments, true
		}
	}
	return models.ToolCall{}, nil, false
}

func blockToolSet() map[string]bool {
	set := make(map[string]bool)
	for _, name := range tools.GroupMembers("block") {
		set[name] = true
	}
	return set
}

func argsJSON(args map[string]interface{}) string {
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}
