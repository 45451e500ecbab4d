package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/glossa/pkg/logger"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

var recordDelimiter = []byte("\n\n")

// Decoder incrementally splits a byte stream into records and decodes each
// into an Event.
//
// Records are split on raw bytes and only converted to text once complete.
// A UTF-8 sequence never contains a newline byte, so a chunk boundary that
// falls inside a multi-byte character is carried over in the buffer intact.
type Decoder struct {
	buf    []byte
	logger *slog.Logger

	termination Termination
	chunks      int
	errMessage  string
	text        strings.Builder
}

// NewDecoder returns a Decoder ready for the first Feed.
func NewDecoder(opts ...Option) *Decoder {
	o := options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Decoder{logger: o.logger}
}

// Feed appends p to the internal buffer and returns the events of every
// record completed by it, in record order. A trailing partial record stays
// buffered for the next call.
//
// Once a terminal event has been returned, Feed is a no-op: later records
// are never decoded and no second terminal event is ever produced.
func (d *Decoder) Feed(p []byte) []Event {
	if d.termination != TerminationNone {
		d.logger.Debug("ignoring bytes fed after stream termination",
			"bytes", len(p),
			"termination", d.termination.String(),
		)
		return nil
	}

	d.buf = append(d.buf, p...)

	var (
		events []Event
		off    int
	)
	for {
		i := bytes.Index(d.buf[off:], recordDelimiter)
		if i < 0 {
			break
		}

		record := d.buf[off : off+i]
		off += i + len(recordDelimiter)

		ev := d.decodeRecord(record)
		if ev == nil {
			continue
		}

		events = append(events, ev)
		if d.termination != TerminationNone {
			d.buf = nil
			return events
		}
	}

	n := copy(d.buf, d.buf[off:])
	d.buf = d.buf[:n]

	return events
}

// EndOfInput tells the decoder that the transport has closed. If no terminal
// record was seen, the transport closure itself terminates the stream.
// Any incomplete trailing record is discarded. EndOfInput may be called more
// than once; it always reports the same Completion.
func (d *Decoder) EndOfInput() Completion {
	if d.termination == TerminationNone {
		if len(bytes.TrimSpace(d.buf)) > 0 {
			d.logger.Debug("discarding incomplete record at end of input",
				"bytes", len(d.buf),
			)
		}
		d.buf = nil
		d.termination = TerminationTransport
	}

	return d.Completion()
}

// Terminated reports whether the stream has ended.
func (d *Decoder) Terminated() bool {
	return d.termination != TerminationNone
}

// Completion reports the decoder's current completion state.
func (d *Decoder) Completion() Completion {
	return Completion{
		Termination:  d.termination,
		Chunks:       d.chunks,
		ErrorMessage: d.errMessage,
	}
}

// Text returns all text emitted so far, concatenated in arrival order.
func (d *Decoder) Text() string {
	return d.text.String()
}

// recordPayload holds the recognized fields of a JSON record. The fields are
// loosely typed because upstreams do not agree on their shape.
type recordPayload struct {
	TextChunk any `json:"text_chunk"`
	Error     any `json:"error"`
	Done      any `json:"done"`
}

// decodeRecord turns a single record into an event, or returns nil when the
// record is dropped.
func (d *Decoder) decodeRecord(raw []byte) Event {
	record := string(raw)
	if !utf8.ValidString(record) {
		record = strings.ToValidUTF8(record, "\uFFFD")
	}

	payload, ok := strings.CutPrefix(record, dataPrefix)
	if !ok {
		// Comments, retry directives, event names and blank keep-alives.
		return nil
	}

	if strings.TrimSpace(payload) == doneSentinel {
		d.termination = TerminationSentinel
		return Done{}
	}

	var p recordPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		d.logger.Warn("dropping malformed stream record",
			"payload", payload,
			"error", err,
		)
		return nil
	}

	if msg := errorMessage(p.Error); msg != "" {
		d.termination = TerminationError
		d.errMessage = msg
		return ErrorEvent{Message: msg}
	}

	if text, ok := p.TextChunk.(string); ok && text != "" {
		d.chunks++
		d.text.WriteString(text)
		return TextChunk{Text: text}
	}

	if truthy(p.Done) {
		d.termination = TerminationDoneField
		return Done{}
	}

	d.logger.Warn("dropping stream record with unrecognized shape",
		"payload", payload,
	)
	return nil
}

// errorMessage extracts a displayable message from an "error" field, which is
// usually a string but is an object with a "message" field on some upstreams.
func errorMessage(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Sprint(e)
		}
		return string(b)
	default:
		if !truthy(v) {
			return ""
		}
		return fmt.Sprint(v)
	}
}

// truthy reports whether a decoded JSON value counts as set: true, a non-zero
// number, a non-empty string, or any object or array.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
