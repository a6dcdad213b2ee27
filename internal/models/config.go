package models

// ModelConfig configures the LLM model parameters
//
// Maps to: codex-rs/core/src/codex.rs SessionConfiguration (model config part)
type ModelConfig struct {
	Provider      string  `json:"provider,omitempty"` // "openai" or "anthropic"; empty defaults to "openai"
	Model         string  `json:"model"`              // e.g., "gpt-3.5-turbo", "gpt-4"
	Temperature   float64 `json:"temperature"`        // 0.0 to 2.0
	MaxTokens     int     `json:"max_tokens"`         // Max tokens to generate
	ContextWindow int     `json:"context_window"`     // Max context window size
}

// DefaultModelConfig returns a sensible default configuration
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		Temperature:   0.7,
		MaxTokens:     4096,
		ContextWindow: 128000,
	}
}

// WebSearchMode controls whether a request turns on the provider's native
// web search capability (OpenAI only). It is independent of the
// web_code_search function tool.
type WebSearchMode string

const (
	WebSearchDisabled WebSearchMode = ""
	WebSearchAuto     WebSearchMode = "auto"
	WebSearchRequired WebSearchMode = "required"
)
