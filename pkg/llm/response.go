package llm

// ChatResponse represents a provider-agnostic, non-streaming chat completion
// response.
type ChatResponse struct {
	// Model that generated the response
	Model string `json:"model"`

	// Text of the first choice, trimmed of surrounding whitespace
	Content string `json:"content"`

	// Stop reason (e.g., "stop", "length")
	FinishReason string `json:"finish_reason,omitempty"`

	// Token usage, when the upstream reports it
	Usage *Usage `json:"usage,omitempty"`
}

// Usage contains token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ErrorResponse is the error body returned by glossa's JSON endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
