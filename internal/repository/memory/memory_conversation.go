package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/forgepulse/agentflow/internal/apperror"
	"github.com/forgepulse/agentflow/internal/domain"
	"github.com/forgepulse/agentflow/internal/repository"
)

// ConversationStore is an in-memory ConversationRepository.
//
// Corresponds to: mfateev/temporal-agent-harness internal/history.InMemoryHistory,
// split per session instead of a single in-process history, with one
// append-only slice per child entity (messages/thoughts/tool calls).
type ConversationStore struct {
	mu       sync.RWMutex
	turns    map[string]*domain.Turn           // turnID -> turn
	bySession map[string][]string              // sessionID -> ordered turnIDs
	messages map[string][]domain.Message       // turnID -> messages
	thoughts map[string][]domain.Thought       // turnID -> thoughts
	tools    map[string]map[string]*domain.ToolCall // turnID -> toolCallID -> tool call
	toolOrder map[string][]string              // turnID -> ordered toolCallIDs
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		turns:     make(map[string]*domain.Turn),
		bySession: make(map[string][]string),
		messages:  make(map[string][]domain.Message),
		thoughts:  make(map[string][]domain.Thought),
		tools:     make(map[string]map[string]*domain.ToolCall),
		toolOrder: make(map[string][]string),
	}
}

func (s *ConversationStore) CreateTurn(_ context.Context, t *domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.turns[t.ID] = &cp
	s.bySession[t.SessionID] = append(s.bySession[t.SessionID], t.ID)
	return nil
}

func (s *ConversationStore) CompleteTurn(_ context.Context, turnID string, promptTokens, completionTokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.turns[turnID]
	if !ok {
		return apperror.NotFound("turn", turnID)
	}
	now := time.Now()
	t.Status = domain.TurnCompleted
	t.CompletedAt = &now
	t.PromptTokens = promptTokens
	t.CompletionTokens = completionTokens
	return nil
}

func (s *ConversationStore) ErrorTurn(_ context.Context, turnID string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.turns[turnID]
	if !ok {
		return apperror.NotFound("turn", turnID)
	}
	now := time.Now()
	t.Status = domain.TurnError
	t.CompletedAt = &now
	t.Error = errMsg
	return nil
}

func (s *ConversationStore) SaveMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.TurnID] = append(s.messages[m.TurnID], *m)
	return nil
}

func (s *ConversationStore) SaveThought(_ context.Context, t *domain.Thought) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thoughts[t.TurnID] = append(s.thoughts[t.TurnID], *t)
	return nil
}

func (s *ConversationStore) RecordToolStart(_ context.Context, tc *domain.ToolCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tools[tc.TurnID] == nil {
		s.tools[tc.TurnID] = make(map[string]*domain.ToolCall)
	}
	cp := *tc
	s.tools[tc.TurnID][tc.ID] = &cp
	s.toolOrder[tc.TurnID] = append(s.toolOrder[tc.TurnID], tc.ID)
	return nil
}

func (s *ConversationStore) RecordToolComplete(_ context.Context, toolCallID string, output string, status domain.ToolCallStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, byID := range s.tools {
		if tc, ok := byID[toolCallID]; ok {
			now := time.Now()
			tc.Output = output
			tc.Status = status
			tc.EndedAt = &now
			return nil
		}
	}
	return apperror.NotFound("tool call", toolCallID)
}

func (s *ConversationStore) GetHistory(_ context.Context, sessionID string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.bySession[sessionID]
	out := make([]domain.Turn, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.turns[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TurnIndex < out[j].TurnIndex })
	return out, nil
}

func (s *ConversationStore) LoadSessionContext(_ context.Context, sessionID string) (*repository.SessionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.bySession[sessionID]
	ctx := &repository.SessionContext{
		Messages: make(map[string][]domain.Message),
		Thoughts: make(map[string][]domain.Thought),
		Tools:    make(map[string][]domain.ToolCall),
	}
	for _, id := range ids {
		ctx.Turns = append(ctx.Turns, *s.turns[id])
		ctx.Messages[id] = append([]domain.Message(nil), s.messages[id]...)
		ctx.Thoughts[id] = append([]domain.Thought(nil), s.thoughts[id]...)
		for _, tcID := range s.toolOrder[id] {
			ctx.Tools[id] = append(ctx.Tools[id], *s.tools[id][tcID])
		}
	}
	sort.Slice(ctx.Turns, func(i, j int) bool { return ctx.Turns[i].TurnIndex < ctx.Turns[j].TurnIndex })
	return ctx, nil
}
