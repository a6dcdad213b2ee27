package models

// researchRoleProfile nudges the research agent toward thorough, cited
// findings regardless of which provider is serving the session.
var researchRoleProfile = ModelProfile{
	AgentRole:    "research",
	PromptSuffix: "Cite the specific files and line ranges your findings are based on so the planning stage doesn't have to re-derive them.",
}

// reviewRoleProfile favors a lower, more deterministic temperature for the
// review agent: catching regressions benefits more from consistency than
// from creative variation.
var reviewRoleProfile = ModelProfile{
	AgentRole:   "review",
	Temperature: Float64Ptr(0.2),
}

// builtinRoleProfiles returns the built-in agent-role profiles, layered
// after the provider/model chain in builtinProfiles.
func builtinRoleProfiles() []ModelProfile {
	return []ModelProfile{
		researchRoleProfile,
		reviewRoleProfile,
	}
}

// Float64Ptr returns a pointer to v, for ModelProfile's optional override
// fields.
func Float64Ptr(v float64) *float64 {
	return &v
}
