package agentrunner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/eventbus"
	"github.com/forgepulse/agentflow/internal/llm"
	"github.com/forgepulse/agentflow/internal/models"
	"github.com/forgepulse/agentflow/internal/repository/memory"
	"github.com/forgepulse/agentflow/internal/tools"
)

// fakeLLM replays a scripted sequence of responses, one per Call.
type fakeLLM struct {
	responses []llm.LLMResponse
	calls     int
}

func (f *fakeLLM) Call(_ context.Context, _ llm.LLMRequest) (llm.LLMResponse, error) {
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeLLM) Compact(_ context.Context, _ llm.CompactRequest) (llm.CompactResponse, error) {
	return llm.CompactResponse{}, nil
}

// echoTool is a trivial read-only handler used to exercise dispatch.
type echoTool struct{}

func (echoTool) Name() string                          { return "echo" }
func (echoTool) Kind() tools.ToolKind                   { return tools.ToolKindFunction }
func (echoTool) IsMutating(*tools.ToolInvocation) bool  { return false }
func (echoTool) Handle(_ context.Context, inv *tools.ToolInvocation) (*tools.ToolOutput, error) {
	return &tools.ToolOutput{Content: "echoed"}, nil
}

func newTestRunner(responses []llm.LLMResponse) (*Runner, *memory.ConversationStore) {
	registry := tools.NewToolRegistry()
	registry.Register(echoTool{})
	router := tools.NewToolRouter(registry, nil)
	conversations := memory.NewConversationStore()
	bus := eventbus.New(32)
	return New(&fakeLLM{responses: responses}, router, conversations, bus), conversations
}

func TestRunTurnCompletesOnPlainStop(t *testing.T) {
	runner, conversations := newTestRunner([]llm.LLMResponse{
		{Items: []models.ConversationItem{{Type: models.ItemTypeAssistantMessage, Content: "hello"}}, FinishReason: models.FinishReasonStop},
	})
	session := &domain.Session{ID: "sess-1"}

	outcome, err := runner.RunTurn(context.Background(), session, Config{}, nil, "hi", 0, false)
	require.NoError(t, err)
	assert.Empty(t, outcome.BlockToolName)

	history, err := conversations.GetHistory(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TurnCompleted, history[0].Status)
}

func TestRunTurnDispatchesNonBlockToolThenCompletes(t *testing.T) {
	runner, _ := newTestRunner([]llm.LLMResponse{
		{
			Items: []models.ConversationItem{{
				Type:      models.ItemTypeToolCall,
				ToolCalls: []models.ToolCall{{ID: "call-1", Name: "echo", Arguments: map[string]interface{}{}}},
			}},
			FinishReason: models.FinishReasonToolCalls,
		},
		{Items: []models.ConversationItem{{Type: models.ItemTypeAssistantMessage, Content: "done"}}, FinishReason: models.FinishReasonStop},
	})
	session := &domain.Session{ID: "sess-2"}

	outcome, err := runner.RunTurn(context.Background(), session, Config{}, nil, "go", 0, false)
	require.NoError(t, err)
	assert.Empty(t, outcome.BlockToolName)

	var sawToolResult bool
	for _, item := range outcome.History {
		if item.Type == models.ItemTypeToolResult && item.ToolOutput == "echoed" {
			sawToolResult = true
		}
	}
	assert.True(t, sawToolResult)
}

func TestRunTurnStopsOnBlockToolWithoutDispatching(t *testing.T) {
	runner, _ := newTestRunner([]llm.LLMResponse{
		{
			Items: []models.ConversationItem{{
				Type: models.ItemTypeToolCall,
				ToolCalls: []models.ToolCall{{
					ID:        "call-1",
					Name:      "submit_scope",
					Arguments: map[string]interface{}{"summary": "x"},
				}},
			}},
			FinishReason: models.FinishReasonToolCalls,
		},
	})
	session := &domain.Session{ID: "sess-3"}

	outcome, err := runner.RunTurn(context.Background(), session, Config{}, nil, "go", 0, false)
	require.NoError(t, err)
	assert.Equal(t, "submit_scope", outcome.BlockToolName)
	assert.Equal(t, "x", outcome.BlockToolArgs["summary"])
}

func TestRunTurnRespectsCancellation(t *testing.T) {
	runner, _ := newTestRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := &domain.Session{ID: "sess-4"}
	_, err := runner.RunTurn(ctx, session, Config{}, nil, "go", 0, false)
	assert.Error(t, err)
}
