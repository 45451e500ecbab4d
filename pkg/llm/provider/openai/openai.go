// Package openai implements the OpenAI chat completions wire format, which
// every platform glossa supports speaks.
package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/papercomputeco/glossa/pkg/llm"
	"github.com/papercomputeco/glossa/pkg/llm/provider"
)

const doneSentinel = "[DONE]"

// openaiProvider implements the Provider interface for OpenAI's Chat Completions API.
type openaiProvider struct{}

// New returns the OpenAI-compatible provider.
func New() provider.Provider { return &openaiProvider{} }

func (o *openaiProvider) Name() string {
	return "openai"
}

func (o *openaiProvider) BuildRequest(req *llm.ChatRequest) ([]byte, error) {
	messages := make([]openaiMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openaiMessage(msg))
	}

	return json.Marshal(openaiRequest{
		Model:       req.Model,
		Messages:    messages,
		Stream:      req.Stream,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
}

func (o *openaiProvider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	var resp openaiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}

	if msg := errorMessage(resp.Error); msg != "" {
		return nil, fmt.Errorf("upstream error: %s", msg)
	}

	if len(resp.Choices) == 0 {
		return nil, provider.ErrEmptyResponse
	}

	choice := resp.Choices[0]
	result := &llm.ChatResponse{
		Model:        resp.Model,
		Content:      strings.TrimSpace(choice.Message.Content),
		FinishReason: choice.FinishReason,
	}

	if resp.Usage != nil {
		result.Usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return result, nil
}

func (o *openaiProvider) ParseStreamChunk(payload []byte) (*llm.StreamChunk, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if string(trimmed) == doneSentinel {
		return &llm.StreamChunk{Done: true}, nil
	}

	var chunk openaiStreamChunk
	if err := json.Unmarshal(trimmed, &chunk); err != nil {
		return nil, err
	}

	if msg := errorMessage(chunk.Error); msg != "" {
		return &llm.StreamChunk{Error: msg}, nil
	}

	if chunk.Done {
		return &llm.StreamChunk{Done: true}, nil
	}

	if len(chunk.Choices) == 0 {
		return nil, nil
	}

	choice := chunk.Choices[0]
	out := &llm.StreamChunk{Content: choice.Delta.Content}
	if choice.FinishReason != nil {
		out.FinishReason = *choice.FinishReason
	}

	// Role-only deltas and empty keep-alive chunks carry nothing.
	if out.Content == "" && out.FinishReason == "" {
		return nil, nil
	}

	return out, nil
}

// errorMessage extracts a message from an "error" field that is either a
// JSON string or an object with a "message" field.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}

	return string(raw)
}
