// Package provider defines how glossa speaks to an upstream LLM API.
package provider

import (
	"errors"

	"github.com/papercomputeco/glossa/pkg/llm"
)

// ErrEmptyResponse is returned by ParseResponse when the upstream answered
// without any choices.
var ErrEmptyResponse = errors.New("upstream response contained no choices")

// Provider encodes chat requests into an upstream's wire format and parses
// that upstream's responses back into the internal representation.
type Provider interface {
	// Name returns the canonical wire format name (e.g., "openai").
	Name() string

	// BuildRequest encodes a chat request as the upstream's JSON body.
	BuildRequest(req *llm.ChatRequest) ([]byte, error)

	// ParseResponse converts a complete, non-streaming response.
	ParseResponse(payload []byte) (*llm.ChatResponse, error)

	// ParseStreamChunk converts the payload of a single streaming event.
	// Returns (nil, nil) if the chunk should be skipped (e.g., role-only
	// deltas, keep-alives).
	ParseStreamChunk(payload []byte) (*llm.StreamChunk, error)
}
