// Package tools provides tool registry, routing, and handler specifications
// for the agent sessions that drive a workflow through its stages.
//
// Corresponds to: mfateev/temporal-agent-harness internal/tools/spec.go,
// generalized from Codex's coding-CLI tool set to the base/pulsing/preflight/
// review/block taxonomy of the workflow orchestrator.
package tools

// Default timeouts in milliseconds.
const (
	DefaultShellTimeoutMs        = 60_000  // 60s default, 300s max (enforced in handlers.ShellTool)
	DefaultReadFileTimeoutMs     = 30_000
	DefaultWriteFileTimeoutMs    = 30_000
	DefaultEditFileTimeoutMs     = 30_000
	DefaultMultiEditTimeoutMs    = 30_000
	DefaultListDirTimeoutMs      = 30_000
	DefaultGrepTimeoutMs         = 30_000
	DefaultSemanticSearchTimeMs  = 30_000
	DefaultWebCodeSearchTimeMs   = 30_000
	DefaultToolTimeoutMs         = 120_000 // fallback for tools without a default
)

// ToolSpec defines the specification for a tool (sent to the LLM in its
// tool-calling prompt).
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`

	// DefaultTimeoutMs is used when the caller doesn't set a context
	// deadline explicitly.
	DefaultTimeoutMs int64 `json:"-"`
}

// ToolParameter defines a parameter for a tool.
type ToolParameter struct {
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Required    bool                   `json:"required"`
	Items       map[string]interface{} `json:"items,omitempty"`
}

func init() {
	RegisterSpec(SpecEntry{Name: "semantic_search", Group: "base", Constructor: NewSemanticSearchToolSpec})
	RegisterSpec(SpecEntry{Name: "read_file", Group: "base", Constructor: NewReadFileToolSpec})
	RegisterSpec(SpecEntry{Name: "list_directory", Group: "base", Constructor: NewListDirectoryToolSpec})
	RegisterSpec(SpecEntry{Name: "grep", Group: "base", Constructor: NewGrepToolSpec})
	RegisterSpec(SpecEntry{Name: "take_note", Group: "base", Constructor: NewTakeNoteToolSpec})
	RegisterSpec(SpecEntry{Name: "web_code_search", Group: "base", Constructor: NewWebCodeSearchToolSpec})
}

// NewReadFileToolSpec creates the specification for the read_file tool.
func NewReadFileToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "read_file",
		Description: "Reads a local file with 1-indexed line numbers, supporting offset/limit for large files.",
		Parameters: []ToolParameter{
			{Name: "path", Type: "string", Description: "Path to the file, relative to the project root or worktree.", Required: true},
			{Name: "offset", Type: "number", Description: "Line number to start reading from. Must be 1 or greater.", Required: false},
			{Name: "limit", Type: "number", Description: "Maximum number of lines to return.", Required: false},
		},
		DefaultTimeoutMs: DefaultReadFileTimeoutMs,
	}
}

// NewListDirectoryToolSpec creates the specification for the list_directory tool.
func NewListDirectoryToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "list_directory",
		Description: "Lists entries in a directory, optionally recursing to a given depth.",
		Parameters: []ToolParameter{
			{Name: "path", Type: "string", Description: "Directory path, relative to the project root or worktree.", Required: true},
			{Name: "depth", Type: "number", Description: "Maximum traversal depth. Must be 1 or greater. Defaults to 1.", Required: false},
		},
		DefaultTimeoutMs: DefaultListDirTimeoutMs,
	}
}

// NewGrepToolSpec creates the specification for the grep tool.
func NewGrepToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "grep",
		Description: "Searches file contents for a regular expression and returns matching lines with file:line context.",
		Parameters: []ToolParameter{
			{Name: "pattern", Type: "string", Description: "Regular expression to search for.", Required: true},
			{Name: "path", Type: "string", Description: "Directory or file to search. Defaults to the project root.", Required: false},
			{Name: "include", Type: "string", Description: "Glob limiting which files are searched, e.g. \"*.go\".", Required: false},
			{Name: "limit", Type: "number", Description: "Maximum number of matching lines to return. Defaults to 200.", Required: false},
		},
		DefaultTimeoutMs: DefaultGrepTimeoutMs,
	}
}

// NewTakeNoteToolSpec creates the specification for the take_note tool. It
// appends a note to the session's scratchpad (internal/notestore); the notes
// are not fed back into later turns or into submitted artifacts.
func NewTakeNoteToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "take_note",
		Description: "Records a short note for later recall in this session (findings, open questions, decisions).",
		Parameters: []ToolParameter{
			{Name: "note", Type: "string", Description: "The note text.", Required: true},
		},
	}
}

// NewSemanticSearchToolSpec creates the specification for the semantic_search
// tool. The handler is a grep-based approximation that scores files by
// ripgrep matches per query term; it uses no embeddings (see
// handlers.SemanticSearchTool).
func NewSemanticSearchToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "semantic_search",
		Description: "Searches the codebase by meaning rather than exact text, useful for finding conceptually related code.",
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Description: "Natural-language description of what to find.", Required: true},
			{Name: "limit", Type: "number", Description: "Maximum number of results. Defaults to 10.", Required: false},
		},
		DefaultTimeoutMs: DefaultSemanticSearchTimeMs,
	}
}

// NewWebCodeSearchToolSpec creates the specification for the web_code_search
// tool, used during research to look up library usage and error messages.
func NewWebCodeSearchToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "web_code_search",
		Description: "Searches public code and documentation on the web for API usage examples and error explanations.",
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Description: "Search query.", Required: true},
		},
		DefaultTimeoutMs: DefaultWebCodeSearchTimeMs,
	}
}
