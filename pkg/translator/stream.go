package translator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/papercomputeco/glossa/pkg/llm"
	"github.com/papercomputeco/glossa/pkg/llm/provider"
	"github.com/papercomputeco/glossa/pkg/sse"
)

// Stream is an open streaming translation. Callers must Close it.
type Stream struct {
	body     io.ReadCloser
	reader   *sse.TeeReader
	provider provider.Provider
	logger   *slog.Logger
	platform string
	finished bool
}

// Stream starts a streaming translation. An upstream status >= 400 is
// returned as an *HTTPError before any chunk is read.
func (t *Translator) Stream(ctx context.Context, req Request) (*Stream, error) {
	resp, err := t.do(ctx, req, true)
	if err != nil {
		return nil, err
	}

	return newStream(resp, t.provider, t.capture, t.logger, t.settings.Platform), nil
}

func newStream(resp *http.Response, prov provider.Provider, capture io.Writer, logger *slog.Logger, platformName string) *Stream {
	return &Stream{
		body:     resp.Body,
		reader:   sse.NewTeeReader(resp.Body, capture),
		provider: prov,
		logger:   logger,
		platform: platformName,
	}
}

// Next returns the next chunk of the translation. It returns io.EOF once
// the upstream closes the stream or after a terminal chunk (done or error)
// has been returned. Any other error is a transport failure.
//
// Events whose payload cannot be parsed are logged and skipped.
func (s *Stream) Next() (*llm.StreamChunk, error) {
	if s.finished {
		return nil, io.EOF
	}

	for {
		ev, err := s.reader.Next()
		if err != nil {
			s.finished = true
			return nil, fmt.Errorf("reading upstream stream from %s: %w", s.platform, err)
		}
		if ev == nil {
			s.finished = true
			return nil, io.EOF
		}

		if ev.IsDoneSentinel() {
			s.logger.Debug("upstream stream finished with sentinel", "platform", s.platform)
			s.finished = true
			return &llm.StreamChunk{Done: true}, nil
		}

		if ev.Bare {
			s.logger.Debug("upstream sent bare JSON line", "platform", s.platform)
		}

		chunk, err := s.provider.ParseStreamChunk([]byte(ev.Data))
		if err != nil {
			s.logger.Warn("could not decode upstream stream chunk",
				"platform", s.platform,
				"data", ev.Data,
				"error", err,
			)
			continue
		}
		if chunk == nil {
			continue
		}

		if chunk.Terminal() {
			s.finished = true
		}
		return chunk, nil
	}
}

// Close releases the upstream connection.
func (s *Stream) Close() error {
	s.finished = true
	return s.body.Close()
}
