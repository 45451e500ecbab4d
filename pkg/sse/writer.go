package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// ErrMultilinePayload is returned when a payload would span several lines,
// which would split it across SSE fields.
var ErrMultilinePayload = errors.New("sse payload must be a single line")

// Writer writes SSE frames to an underlying writer. Each frame is a single
// "data:" line followed by a blank line.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer that writes frames to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteJSON encodes v as single-line JSON and writes it as a data frame.
// HTML characters are not escaped.
func (w *Writer) WriteJSON(v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}

	return w.WriteData(bytes.TrimRight(buf.Bytes(), "\n"))
}

// WriteData writes payload verbatim as a data frame.
func (w *Writer) WriteData(payload []byte) error {
	if bytes.ContainsAny(payload, "\r\n") {
		return ErrMultilinePayload
	}

	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)

	_, err := w.w.Write(frame)
	return err
}

// WriteComment writes a comment frame, which clients ignore. Useful as a
// keep-alive or to flush headers early.
func (w *Writer) WriteComment(text string) error {
	if strings.ContainsAny(text, "\r\n") {
		return ErrMultilinePayload
	}

	_, err := io.WriteString(w.w, ": "+text+"\n\n")
	return err
}
