package tools

func init() {
	RegisterSpec(SpecEntry{Name: "get_diff", Group: "review", Constructor: NewGetDiffToolSpec})
	RegisterSpec(SpecEntry{Name: "get_scope_card", Group: "review", Constructor: NewGetScopeCardToolSpec})
	RegisterSpec(SpecEntry{Name: "add_line_comment", Group: "review", Constructor: NewAddLineCommentToolSpec})
	RegisterSpec(SpecEntry{Name: "add_file_comment", Group: "review", Constructor: NewAddFileCommentToolSpec})
	RegisterSpec(SpecEntry{Name: "add_review_comment", Group: "review", Constructor: NewAddReviewCommentToolSpec})
	RegisterSpec(SpecEntry{Name: "complete_review", Group: "review", Constructor: NewCompleteReviewToolSpec})
}

// NewGetDiffToolSpec creates the specification for the get_diff tool.
func NewGetDiffToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "get_diff",
		Description: "Returns the unified diff of the worktree's uncommitted changes against HEAD.",
		Parameters:  []ToolParameter{},
	}
}

// NewGetScopeCardToolSpec creates the specification for the get_scope_card tool.
func NewGetScopeCardToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "get_scope_card",
		Description: "Returns the approved ScopeCard for this workflow, for cross-checking the diff against the original intent.",
		Parameters:  []ToolParameter{},
	}
}

// NewAddLineCommentToolSpec creates the specification for the add_line_comment tool.
func NewAddLineCommentToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "add_line_comment",
		Description: "Attaches a review comment to a specific line range in a changed file.",
		Parameters: []ToolParameter{
			{Name: "filePath", Type: "string", Description: "Path of the file the comment refers to.", Required: true},
			{Name: "startLine", Type: "number", Description: "First line the comment refers to.", Required: true},
			{Name: "endLine", Type: "number", Description: "Last line the comment refers to. Defaults to startLine.", Required: false},
			{Name: "comment", Type: "string", Description: "Comment text.", Required: true},
			{Name: "severity", Type: "string", Description: "One of: High, Medium, Low.", Required: true},
		},
	}
}

// NewAddFileCommentToolSpec creates the specification for the add_file_comment tool.
func NewAddFileCommentToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "add_file_comment",
		Description: "Attaches a review comment to a whole file rather than a specific line range.",
		Parameters: []ToolParameter{
			{Name: "filePath", Type: "string", Description: "Path of the file the comment refers to.", Required: true},
			{Name: "comment", Type: "string", Description: "Comment text.", Required: true},
			{Name: "severity", Type: "string", Description: "One of: High, Medium, Low.", Required: true},
		},
	}
}

// NewAddReviewCommentToolSpec creates the specification for the
// add_review_comment tool, a workflow-wide comment not scoped to any file.
func NewAddReviewCommentToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "add_review_comment",
		Description: "Attaches a general review comment to the workflow as a whole.",
		Parameters: []ToolParameter{
			{Name: "comment", Type: "string", Description: "Comment text.", Required: true},
			{Name: "severity", Type: "string", Description: "One of: High, Medium, Low.", Required: true},
		},
	}
}

// NewCompleteReviewToolSpec creates the specification for the
// complete_review stage-completion tool.
func NewCompleteReviewToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "complete_review",
		Description: "Finalizes the ReviewCard with a recommendation and suggested commit message, completing the review stage.",
		Parameters: []ToolParameter{
			{Name: "recommendation", Type: "string", Description: "One of: approve, deny, manual_review.", Required: true},
			{Name: "suggestedCommitMessage", Type: "string", Description: "Commit message to use if the workflow is approved and merged.", Required: true},
			{Name: "summary", Type: "string", Description: "Short summary of the review findings.", Required: false},
		},
	}
}
