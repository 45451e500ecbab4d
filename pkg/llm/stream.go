package llm

// StreamChunk represents a single chunk in a streaming response after it has
// been parsed out of the provider's wire format.
type StreamChunk struct {
	// Incremental text carried by this chunk
	Content string `json:"content,omitempty"`

	// Whether this is the final chunk
	Done bool `json:"done,omitempty"`

	// Error reported in-band by the upstream. A chunk with an error is final.
	Error string `json:"error,omitempty"`

	// Stop reason (only present on the final chunk of some upstreams)
	FinishReason string `json:"finish_reason,omitempty"`
}

// Terminal reports whether no further chunks follow this one.
func (c *StreamChunk) Terminal() bool {
	return c.Done || c.Error != ""
}
