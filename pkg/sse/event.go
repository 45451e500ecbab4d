// Package sse provides the two halves of SSE (Server-Sent Events) handling
// the glossa relay needs: a tee-reader that parses events from an upstream
// LLM provider while copying the raw bytes to a second writer, and a minimal
// writer for the single-line JSON frames the relay emits to its clients.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "strings"

// DoneSentinel is the data payload OpenAI-style upstreams send last.
const DoneSentinel = "[DONE]"

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n" (per the SSE spec, multiple data fields are joined
	// with a single newline).
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string

	// Bare is set when the event came from a bare JSON object line rather
	// than from SSE fields. Some OpenAI-compatible servers emit those.
	Bare bool
}

// IsDoneSentinel reports whether the event is the OpenAI "[DONE]" marker.
func (e *Event) IsDoneSentinel() bool {
	return strings.TrimSpace(e.Data) == DoneSentinel
}
