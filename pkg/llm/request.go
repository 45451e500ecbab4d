package llm

// ChatRequest represents a provider-agnostic chat completion request.
// Providers encode it into their own wire format.
type ChatRequest struct {
	// Model name (e.g., "deepseek-chat", "qwen2.5:7b")
	Model string `json:"model"`

	// Conversation messages
	Messages []Message `json:"messages"`

	// Whether to stream the response
	Stream bool `json:"stream"`

	// Generation parameters. Nil means "let the upstream decide", which is
	// what local runtimes such as ollama expect.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}
