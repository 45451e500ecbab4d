package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialBufferSize = 64 * 1024
	maxLineSize       = 1024 * 1024
)

// TeeReader reads SSE events from an upstream io.Reader while writing all raw
// bytes to a destination io.Writer.
//
// ┌────────────────────┐
// │ upstream response  │
// └────────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌─────────────────────────────┐
// │ TeeReader.Next() │──▶│ destination (debug capture) │
// └──────────────────┘   └─────────────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
//
// The relay uses the destination to capture the exact upstream bytes for
// debugging; pass io.Discard when no capture is wanted.
type TeeReader struct {
	scanner *bufio.Scanner
	dest    io.Writer

	// current accumulates fields for the event being built in the current scan.
	current *Event
	hasData bool
}

// NewTeeReader returns a reader that parses SSE events from src and writes
// all raw bytes through to dest. A nil dest discards the bytes.
func NewTeeReader(src io.Reader, dest io.Writer) *TeeReader {
	if dest == nil {
		dest = io.Discard
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufferSize), maxLineSize)

	return &TeeReader{
		scanner: scanner,
		dest:    dest,
		current: &Event{},
	}
}

// Next returns the next parsed event. It blocks until a complete event is
// available (terminated by a blank line in the stream) and returns nil, nil
// once the source is exhausted.
//
// A line holding a bare JSON object outside of any event is returned as an
// event of its own with Bare set.
func (r *TeeReader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		// bufio.Scanner strips the newline, so it is reinserted here.
		if _, err := io.WriteString(r.dest, raw+"\n"); err != nil {
			return nil, err
		}

		// A blank line signals the end of the current event.
		if raw == "" {
			if r.hasData {
				ev := r.current
				r.reset()
				return ev, nil
			}

			// Leading blank lines or keep-alive newlines.
			continue
		}

		// Lines starting with ':' are comments.
		if strings.HasPrefix(raw, ":") {
			continue
		}

		if !r.hasData && isBareJSONObject(raw) {
			return &Event{Data: strings.TrimSpace(raw), Bare: true}, nil
		}

		r.parseLine(raw)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// The stream ended without a trailing blank line.
	if r.hasData {
		ev := r.current
		r.reset()
		return ev, nil
	}

	return nil, nil
}

// parseLine processes a single non-empty, non-comment line of the form
// "field:value" and accumulates the field into the current event. The first
// space after the colon is optional and stripped if present.
func (r *TeeReader) parseLine(line string) {
	var field, value string

	if before, after, ok := strings.Cut(line, ":"); ok {
		field = before
		value = strings.TrimPrefix(after, " ")
	} else {
		// No colon: the whole line is the field name with an empty value.
		field = line
	}

	switch field {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" and unknown fields are ignored.
	}
}

// reset clears the accumulated event state for the next event.
func (r *TeeReader) reset() {
	r.current = &Event{}
	r.hasData = false
}

func isBareJSONObject(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")
}
