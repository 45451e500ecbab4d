package stream

import "log/slog"

const defaultReadSize = 4 * 1024

type options struct {
	logger   *slog.Logger
	readSize int
}

// Option configures a Decoder or a Consume call.
type Option func(*options)

// WithLogger sets the logger that receives diagnostics about dropped records.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithReadSize sets the buffer size Consume reads from the transport with.
func WithReadSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readSize = n
		}
	}
}
