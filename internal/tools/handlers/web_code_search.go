package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgepulse/agentflow/internal/tools"
)

// WebSearchResult is one hit returned by a WebSearchBackend.
type WebSearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearchBackend performs the actual web lookup. No example repo in the
// retrieval pack wires a code-search API client, so this is a narrow,
// swappable seam rather than a hard dependency on one vendor.
type WebSearchBackend interface {
	Search(ctx context.Context, query string) ([]WebSearchResult, error)
}

// WebCodeSearchTool looks up library usage and error messages on the web.
// With no backend configured it reports that web search is unavailable
// rather than silently returning nothing, so the agent knows to fall back
// to local exploration.
type WebCodeSearchTool struct {
	backend WebSearchBackend
}

// NewWebCodeSearchTool creates a web_code_search tool handler. A nil backend
// disables the tool's network path; Handle still succeeds, it just reports
// that no results are available.
func NewWebCodeSearchTool(backend WebSearchBackend) *WebCodeSearchTool {
	return &WebCodeSearchTool{backend: backend}
}

func (t *WebCodeSearchTool) Name() string              { return "web_code_search" }
func (t *WebCodeSearchTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *WebCodeSearchTool) IsMutating(*tools.ToolInvocation) bool { return false }

func (t *WebCodeSearchTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	query, ok := invocation.Arguments["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, tools.NewValidationError("missing required argument: query")
	}

	if t.backend == nil {
		success := false
		return &tools.ToolOutput{
			Content: "web_code_search is not configured in this deployment; rely on local exploration tools instead",
			Success: &success,
		}, nil
	}

	results, err := t.backend.Search(ctx, query)
	if err != nil {
		success := false
		return &tools.ToolOutput{Content: fmt.Sprintf("web search failed: %v", err), Success: &success}, nil
	}
	if len(results) == 0 {
		success := false
		return &tools.ToolOutput{Content: "No results found.", Success: &success}, nil
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}

	success := true
	return &tools.ToolOutput{Content: strings.TrimRight(b.String(), "\n"), Success: &success}, nil
}
