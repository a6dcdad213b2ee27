package handlers

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	"github.com/forgepulse/agentflow/internal/tools"
)

var identifierSplit = regexp.MustCompile(`[^a-zA-Z0-9]+`)

const semanticSearchDefaultLimit = 10

// SemanticSearchTool ranks files by how many distinct query terms they
// contain. There is no embedding index in this deployment, so "semantic"
// search degrades to a multi-term lexical scoring over ripgrep's output —
// still useful for "find the code that does X" queries phrased as a few
// keywords rather than one exact string.
type SemanticSearchTool struct{}

// NewSemanticSearchTool creates a semantic_search tool handler.
func NewSemanticSearchTool() *SemanticSearchTool {
	return &SemanticSearchTool{}
}

func (t *SemanticSearchTool) Name() string              { return "semantic_search" }
func (t *SemanticSearchTool) Kind() tools.ToolKind       { return tools.ToolKindFunction }
func (t *SemanticSearchTool) IsMutating(*tools.ToolInvocation) bool { return false }

func (t *SemanticSearchTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	query, ok := invocation.Arguments["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, tools.NewValidationError("missing required argument: query")
	}

	limit := semanticSearchDefaultLimit
	if v, ok := invocation.Arguments["limit"]; ok {
		switch n := v.(type) {
		case float64:
			limit = int(n)
		case int:
			limit = n
		default:
			return nil, tools.NewValidationError("limit must be a number")
		}
	}
	if limit < 1 {
		return nil, tools.NewValidationError("limit must be greater than zero")
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		success := false
		return &tools.ToolOutput{Content: "query has no searchable terms", Success: &success}, nil
	}

	root := invocation.CwdRoot()
	scores := make(map[string]int)
	for _, term := range terms {
		files, err := runRgCount(ctx, term, root)
		if err != nil {
			continue
		}
		for _, f := range files {
			scores[f]++
		}
	}

	if len(scores) == 0 {
		success := false
		return &tools.ToolOutput{Content: "No matches found.", Success: &success}, nil
	}

	type scored struct {
		path  string
		score int
	}
	ranked := make([]scored, 0, len(scores))
	for p, s := range scores {
		ranked = append(ranked, scored{p, s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].path < ranked[j].path
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	var b strings.Builder
	for _, r := range ranked {
		b.WriteString(r.path)
		b.WriteString("\n")
	}

	success := true
	return &tools.ToolOutput{Content: strings.TrimRight(b.String(), "\n"), Success: &success}, nil
}

// queryTerms splits a natural-language query into lowercase identifier-like
// tokens of 3 or more characters.
func queryTerms(query string) []string {
	parts := identifierSplit.Split(query, -1)
	seen := make(map[string]bool)
	var terms []string
	for _, p := range parts {
		p = strings.ToLower(p)
		if len(p) < 3 || seen[p] {
			continue
		}
		seen[p] = true
		terms = append(terms, p)
	}
	return terms
}

// runRgCount returns the distinct files in root matching term, ignoring
// ripgrep errors (bad terms just contribute no score).
func runRgCount(ctx context.Context, term, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "rg", "--files-with-matches", "--fixed-strings", "--ignore-case", "--no-messages", term, "--", root)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}
