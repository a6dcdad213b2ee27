package tools

func init() {
	RegisterSpec(SpecEntry{Name: "write_file", Group: "pulsing", Constructor: NewWriteFileToolSpec})
	RegisterSpec(SpecEntry{Name: "edit_file", Group: "pulsing", Constructor: NewEditFileToolSpec})
	RegisterSpec(SpecEntry{Name: "multi_edit", Group: "pulsing", Constructor: NewMultiEditToolSpec})
	RegisterSpec(SpecEntry{Name: "shell", Group: "pulsing", Constructor: NewShellToolSpec})
	RegisterSpec(SpecEntry{Name: "shell", Group: "preflight", Constructor: NewShellToolSpec})
}

// NewShellToolSpec creates the specification for the shell tool, shared by
// the pulsing and preflight tool groups.
func NewShellToolSpec() ToolSpec {
	return ToolSpec{
		Name: "shell",
		Description: `Runs a command with "bash -c" inside the ` +
			`pulse's worktree. Output is truncated (4 KB head+tail by default, 64 KB max). ` +
			`Commands not already remembered for this workflow block until a human approves or denies them.`,
		Parameters: []ToolParameter{
			{Name: "command", Type: "string", Description: "The shell command to execute.", Required: true},
			{Name: "workdir", Type: "string", Description: "Working directory relative to the worktree root.", Required: false},
			{Name: "timeout_ms", Type: "number", Description: "Timeout in milliseconds, default 60000, max 300000.", Required: false},
		},
		DefaultTimeoutMs: DefaultShellTimeoutMs,
	}
}

// NewWriteFileToolSpec creates the specification for the write_file tool.
func NewWriteFileToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "write_file",
		Description: "Creates or overwrites a file with the given content. Parent directories are created automatically.",
		Parameters: []ToolParameter{
			{Name: "path", Type: "string", Description: "Path relative to the worktree root. Absolute paths and \"..\" are rejected.", Required: true},
			{Name: "content", Type: "string", Description: "The full contents to write.", Required: true},
		},
		DefaultTimeoutMs: DefaultWriteFileTimeoutMs,
	}
}

// NewEditFileToolSpec creates the specification for the edit_file tool.
func NewEditFileToolSpec() ToolSpec {
	return ToolSpec{
		Name: "edit_file",
		Description: `Replaces an exact-match substring in a file. Fails if oldString is absent, ` +
			`or occurs more than once unless replaceAll is set. No fuzzy matching.`,
		Parameters: []ToolParameter{
			{Name: "path", Type: "string", Description: "Path relative to the worktree root.", Required: true},
			{Name: "oldString", Type: "string", Description: "Exact text to find.", Required: true},
			{Name: "newString", Type: "string", Description: "Replacement text.", Required: true},
			{Name: "replaceAll", Type: "boolean", Description: "Replace every occurrence instead of requiring exactly one.", Required: false},
		},
		DefaultTimeoutMs: DefaultEditFileTimeoutMs,
	}
}

// NewMultiEditToolSpec creates the specification for the multi_edit tool.
func NewMultiEditToolSpec() ToolSpec {
	return ToolSpec{
		Name: "multi_edit",
		Description: `Applies an ordered list of exact-match edits to one file as a single ` +
			`all-or-nothing operation. If a blocking post-write hook fails, the file is rolled ` +
			`back to its pre-edit contents.`,
		Parameters: []ToolParameter{
			{Name: "path", Type: "string", Description: "Path relative to the worktree root.", Required: true},
			{
				Name: "edits", Type: "array", Required: true,
				Description: "Ordered list of {oldString, newString, replaceAll} edits applied sequentially.",
				Items: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"oldString":  map[string]interface{}{"type": "string"},
						"newString":  map[string]interface{}{"type": "string"},
						"replaceAll": map[string]interface{}{"type": "boolean"},
					},
					"required": []string{"oldString", "newString"},
				},
			},
		},
		DefaultTimeoutMs: DefaultMultiEditTimeoutMs,
	}
}
