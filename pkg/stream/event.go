// Package stream decodes the translation event stream produced by the glossa
// relay.
//
// The stream follows the text/event-stream framing convention: records are
// separated by a blank line and data-bearing records carry the literal
// "data: " prefix. Each payload is either the "[DONE]" sentinel or a JSON
// object with one of the fields "error", "text_chunk" or "done".
//
// A Decoder is a plain state object. It is fed raw bytes as they arrive from
// the transport and returns the events completed by those bytes, in order.
// It never blocks, owns no resources and holds no state across requests.
package stream

// Event is a decoded stream event. The set of implementations is closed:
// TextChunk, ErrorEvent and Done.
type Event interface {
	event()
}

// TextChunk carries incremental translation text. It is never terminal.
type TextChunk struct {
	Text string
}

func (TextChunk) event() {}

// ErrorEvent carries an error reported by the upstream. It is terminal.
type ErrorEvent struct {
	Message string
}

func (ErrorEvent) event() {}

// Done signals a clean end of stream. It is terminal.
type Done struct{}

func (Done) event() {}

var (
	_ Event = TextChunk{}
	_ Event = ErrorEvent{}
	_ Event = Done{}
)

// IsTerminal reports whether no further events follow ev.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case ErrorEvent, Done:
		return true
	default:
		return false
	}
}

// Termination identifies the signal that ended a stream.
type Termination int

const (
	// TerminationNone means the stream has not terminated yet.
	TerminationNone Termination = iota

	// TerminationSentinel is the literal "data: [DONE]" record used by
	// OpenAI-style upstreams.
	TerminationSentinel

	// TerminationDoneField is a JSON record with a truthy "done" field.
	TerminationDoneField

	// TerminationError is a JSON record with a non-empty "error" field.
	TerminationError

	// TerminationTransport means the transport closed before any terminal
	// record was seen.
	TerminationTransport
)

func (t Termination) String() string {
	switch t {
	case TerminationNone:
		return "none"
	case TerminationSentinel:
		return "sentinel"
	case TerminationDoneField:
		return "done_field"
	case TerminationError:
		return "error"
	case TerminationTransport:
		return "transport_closed"
	default:
		return "unknown"
	}
}

// Completion summarizes how a stream ended.
type Completion struct {
	// Termination is the signal that ended the stream.
	Termination Termination

	// Chunks is the number of TextChunk events emitted.
	Chunks int

	// ErrorMessage is set when Termination is TerminationError.
	ErrorMessage string
}

// Terminated reports whether the stream has ended.
func (c Completion) Terminated() bool {
	return c.Termination != TerminationNone
}

// HasContent reports whether at least one TextChunk was emitted.
func (c Completion) HasContent() bool {
	return c.Chunks > 0
}

// Failed reports whether the upstream ended the stream with an error.
func (c Completion) Failed() bool {
	return c.Termination == TerminationError
}

// ClosedByTransport reports whether the stream ended because the transport
// closed rather than through an explicit sentinel, done field or error.
func (c Completion) ClosedByTransport() bool {
	return c.Termination == TerminationTransport
}
