// block_spec.go defines the stage-completion and control-flow tools: the
// ones intercepted by the workflow orchestrator rather than dispatched
// through the ToolRegistry (see approvalArtifactTypes / autoTransitionTargets
// in internal/workfloworchestrator).
package tools

func init() {
	RegisterSpec(SpecEntry{Name: "submit_scope", Group: "block", Constructor: NewSubmitScopeToolSpec})
	RegisterSpec(SpecEntry{Name: "submit_research", Group: "block", Constructor: NewSubmitResearchToolSpec})
	RegisterSpec(SpecEntry{Name: "submit_plan", Group: "block", Constructor: NewSubmitPlanToolSpec})
	RegisterSpec(SpecEntry{Name: "request_extension", Group: "block", Constructor: NewRequestExtensionToolSpec})
	RegisterSpec(SpecEntry{Name: "ask_questions", Group: "block", Constructor: NewAskQuestionsToolSpec})
	RegisterSpec(SpecEntry{Name: "complete_preflight", Group: "block", Constructor: NewCompletePreflightToolSpec})
	RegisterSpec(SpecEntry{Name: "complete_pulse", Group: "block", Constructor: NewCompletePulseToolSpec})
	// complete_review is defined in review_spec.go (it belongs to the
	// "review" tool-set too) but also ends its turn without dispatching,
	// so it needs "block" group membership for agentrunner's blockToolSet.
	RegisterSpec(SpecEntry{Name: "complete_review", Group: "block", Constructor: NewCompleteReviewToolSpec})
}

// NewSubmitScopeToolSpec creates the specification for the submit_scope
// stage-completion tool, which ends the scoping stage pending approval.
func NewSubmitScopeToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "submit_scope",
		Description: "Submits the ScopeCard for this workflow, ending the scoping stage pending approval.",
		Parameters: []ToolParameter{
			{Name: "summary", Type: "string", Description: "Short summary of what is in and out of scope.", Required: true},
			{Name: "recommendedPath", Type: "string", Description: "One of: quick, full.", Required: true},
			{Name: "details", Type: "string", Description: "Full scope writeup.", Required: false},
		},
	}
}

// NewSubmitResearchToolSpec creates the specification for the
// submit_research stage-completion tool.
func NewSubmitResearchToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "submit_research",
		Description: "Submits the ResearchCard for this workflow, ending the researching stage pending approval.",
		Parameters: []ToolParameter{
			{Name: "findings", Type: "string", Description: "Research findings relevant to implementing the scope.", Required: true},
			{Name: "risks", Type: "string", Description: "Risks or open questions discovered during research.", Required: false},
		},
	}
}

// NewSubmitPlanToolSpec creates the specification for the submit_plan
// stage-completion tool.
func NewSubmitPlanToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "submit_plan",
		Description: "Submits the Plan for this workflow as an ordered list of pulses, ending the planning stage pending approval.",
		Parameters: []ToolParameter{
			{
				Name: "pulses", Type: "array", Required: true,
				Description: "Ordered list of pulse descriptors.",
				Items: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":              map[string]interface{}{"type": "string"},
						"title":           map[string]interface{}{"type": "string"},
						"description":     map[string]interface{}{"type": "string"},
						"expectedChanges": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
						"estimatedSize":   map[string]interface{}{"type": "string"},
						"dependsOn":       map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					},
					"required": []string{"id", "title", "description"},
				},
			},
		},
	}
}

// NewRequestExtensionToolSpec creates the specification for the
// request_extension control tool, used when an agent needs more turns
// than its stage's default budget allows.
func NewRequestExtensionToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "request_extension",
		Description: "Requests additional turns for the current stage, with a justification.",
		Parameters: []ToolParameter{
			{Name: "reason", Type: "string", Description: "Why more turns are needed.", Required: true},
			{Name: "additionalTurns", Type: "number", Description: "Number of additional turns requested.", Required: false},
		},
	}
}

// NewAskQuestionsToolSpec creates the specification for the ask_questions
// control tool, used to request clarification from the user mid-stage.
func NewAskQuestionsToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "ask_questions",
		Description: "Asks the user one or more multiple-choice questions and suspends the session until answered.",
		Parameters: []ToolParameter{
			{
				Name: "questions", Type: "array", Required: true,
				Description: "List of questions, each with an id, question text, and options.",
				Items: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":       map[string]interface{}{"type": "string"},
						"question": map[string]interface{}{"type": "string"},
						"options": map[string]interface{}{
							"type": "array",
							"items": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"label":       map[string]interface{}{"type": "string"},
									"description": map[string]interface{}{"type": "string"},
								},
								"required": []string{"label"},
							},
						},
					},
					"required": []string{"id", "question", "options"},
				},
			},
		},
	}
}

// NewCompletePreflightToolSpec creates the specification for the
// complete_preflight deferred turn-completion tool.
func NewCompletePreflightToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "complete_preflight",
		Description: "Signals that the preflight session has finished establishing the baseline and the worktree is ready for the first pulse.",
		Parameters:  []ToolParameter{},
	}
}

// NewCompletePulseToolSpec creates the specification for the complete_pulse
// deferred turn-completion tool.
func NewCompletePulseToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "complete_pulse",
		Description: "Signals that the current pulse's code change is complete and verified against the baseline.",
		Parameters: []ToolParameter{
			{Name: "summary", Type: "string", Description: "Summary of the change made in this pulse.", Required: false},
			{Name: "hasUnresolvedIssues", Type: "boolean", Description: "Whether known issues remain that a later pulse or review should address.", Required: false},
		},
	}
}
