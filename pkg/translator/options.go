package translator

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/glossa/pkg/llm/provider"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultDialTimeout  = 10 * time.Second
	defaultBatchChars   = 2000
	defaultTemperature  = 0.7
	defaultMaxTokens    = 4000
	maxErrorBodyPreview = 4 * 1024
)

type options struct {
	logger     *slog.Logger
	httpClient *http.Client
	provider   provider.Provider
	capture    io.Writer
	timeout    time.Duration
	batchChars int
}

// Option configures a Translator.
type Option func(*options)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithHTTPClient replaces the HTTP client used for upstream calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithProvider replaces the wire format used to talk to the upstream.
func WithProvider(p provider.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithCapture tees every raw byte of streamed upstream responses to w.
func WithCapture(w io.Writer) Option {
	return func(o *options) {
		o.capture = w
	}
}

// WithTimeout bounds non-streaming requests. Streams are bounded only by the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithBatchChars sets the character budget for one upstream call when
// translating files.
func WithBatchChars(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchChars = n
		}
	}
}
