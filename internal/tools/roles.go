package tools

import "github.com/forgepulse/agentflow/internal/domain"

// RoleToolSets returns, for every agent role, the internal tool names (and
// groups, expanded by ExpandGroups/BuildSpecs) available to sessions running
// in that role.
func RoleToolSets() map[domain.AgentRole][]string {
	return map[domain.AgentRole][]string{
		domain.RoleScoping:    {"base", "submit_scope", "request_extension", "ask_questions"},
		domain.RoleResearch:   {"base", "submit_research", "request_extension", "ask_questions"},
		domain.RolePlanning:   {"base", "submit_plan", "request_extension", "ask_questions"},
		domain.RolePreflight:  {"base", "preflight", "complete_preflight", "request_extension"},
		domain.RoleExecution:  {"base", "pulsing", "complete_pulse"},
		domain.RoleReview:     {"base", "review"},
		domain.RoleDiscussion: {"base", "ask_questions"},
	}
}

// ToolsForRole builds the ToolSpec list the LLM sees for a given agent role.
func ToolsForRole(role domain.AgentRole) []ToolSpec {
	sets := RoleToolSets()
	names, ok := sets[role]
	if !ok {
		return nil
	}
	return BuildSpecs(names)
}
