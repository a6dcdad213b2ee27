package models

import "regexp"

// ProfileRegistry holds ordered ModelProfile entries and resolves them
// against a provider/model pair.
type ProfileRegistry struct {
	profiles []ModelProfile
}

// NewDefaultRegistry returns a registry populated with built-in profiles
// from the provider files (default, anthropic, openai).
func NewDefaultRegistry() *ProfileRegistry {
	return &ProfileRegistry{
		profiles: builtinProfiles(),
	}
}

// Resolve walks the registry profiles, matches by provider then by model
// regexp, merges layers, and returns a fully resolved profile.
//
// Resolution order: default (no provider) → provider-wide → model-specific.
func (r *ProfileRegistry) Resolve(provider, model string) ResolvedProfile {
	return r.ResolveForRole(provider, model, "")
}

// ResolveForRole is Resolve with an additional agentRole axis: role profiles
// (ModelProfile.AgentRole) layer on top of the provider/model chain so a
// role's persona guidance and parameter overrides apply regardless of which
// provider is serving the session. Pass "" for agentRole to get the same
// result as Resolve.
func (r *ProfileRegistry) ResolveForRole(provider, model, agentRole string) ResolvedProfile {
	merged := ModelProfile{}

	for _, p := range r.profiles {
		if !profileMatches(p, provider, model, agentRole) {
			continue
		}
		merged = mergeProfiles(merged, p)
	}

	return toResolved(merged)
}

// profileMatches returns true if the profile applies to the given
// provider/model/agentRole combination.
func profileMatches(p ModelProfile, provider, model, agentRole string) bool {
	if p.AgentRole != "" && p.AgentRole != agentRole {
		return false
	}

	// Default profile (no provider, no model pattern): always matches
	if p.Provider == "" && p.ModelPattern == "" {
		return true
	}

	// Provider must match (case-sensitive)
	if p.Provider != "" && p.Provider != provider {
		return false
	}

	// Provider-wide profile (no model pattern): matches all models for this provider
	if p.ModelPattern == "" {
		return true
	}

	// Model pattern match
	matched, err := regexp.MatchString(p.ModelPattern, model)
	if err != nil {
		return false
	}
	return matched
}

// toResolved converts a merged ModelProfile into a ResolvedProfile.
// A nil BasePrompt becomes the empty string; the other pointer fields are
// copied as they are and stay nil when no layer set them.
func toResolved(p ModelProfile) ResolvedProfile {
	r := ResolvedProfile{
		PromptSuffix:    p.PromptSuffix,
		AgentsFileNames: p.AgentsFileNames,
		Tools:           p.Tools,
		Temperature:     p.Temperature,
		MaxTokens:       p.MaxTokens,
		ContextWindow:   p.ContextWindow,
	}

	if p.BasePrompt != nil {
		r.BasePrompt = *p.BasePrompt
	}

	return r
}
