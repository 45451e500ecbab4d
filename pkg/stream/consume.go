package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/papercomputeco/glossa/pkg/logger"
)

// ErrTransport wraps errors returned by the underlying reader. A transport
// failure ends the stream; it is never retried here.
var ErrTransport = errors.New("stream transport failure")

// Handler receives decoded events in order. Returning an error stops
// Consume, which returns that error.
type Handler func(Event) error

// Consume drives a Decoder from r until a terminal event is decoded or r is
// exhausted, handing every event to handle.
//
// Reading stops as soon as a terminal event has been handled; the caller
// should then close the transport. At io.EOF the decoder's EndOfInput
// determines the Completion. The context is checked between reads only, so
// cancelling a blocked read is left to the transport (e.g. the request
// context of an HTTP response body).
func Consume(ctx context.Context, r io.Reader, handle Handler, opts ...Option) (Completion, error) {
	o := options{
		logger:   logger.Nop(),
		readSize: defaultReadSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	d := NewDecoder(WithLogger(o.logger))
	buf := make([]byte, o.readSize)

	for {
		if err := ctx.Err(); err != nil {
			return d.Completion(), err
		}

		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range d.Feed(buf[:n]) {
				if herr := handle(ev); herr != nil {
					return d.Completion(), herr
				}
			}

			if d.Terminated() {
				c := d.Completion()
				o.logger.Debug("stream terminated by record",
					"termination", c.Termination.String(),
					"chunks", c.Chunks,
				)
				return c, nil
			}
		}

		if errors.Is(err, io.EOF) {
			c := d.EndOfInput()
			o.logger.Debug("stream closed by transport",
				"chunks", c.Chunks,
			)
			return c, nil
		}
		if err != nil {
			return d.Completion(), fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}
}
