package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/glossa/pkg/llm"
	"github.com/papercomputeco/glossa/pkg/sse"
	"github.com/papercomputeco/glossa/pkg/translator"
)

const openComment = "stream open"

type textChunkFrame struct {
	TextChunk string `json:"text_chunk"`
}

type doneFrame struct {
	Done bool `json:"done"`
}

// streamTranslation answers with a text/event-stream body fed by a goroutine
// that relays the upstream stream.
func (r *Relay) streamTranslation(c *fiber.Ctx, tr *translator.Translator, req translator.Request) error {
	r.headerHandler.SetClientStreamHeaders(c)
	streamsStarted.Add(1)

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter: pw.Write
	// blocks until fasthttp has read the frame and flushed it to the socket,
	// so every chunk reaches the client as soon as it arrives.
	pr, pw := io.Pipe()
	go r.relayStream(tr, req, pw)

	// Unknown size (-1) triggers chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// relayStream copies the upstream translation into pw as normalized frames.
// Exactly one terminal frame is written unless the client goes away first.
func (r *Relay) relayStream(tr *translator.Translator, req translator.Request, pw *io.PipeWriter) {
	defer pw.Close()

	// fasthttp recycles the request context when the handler returns, but
	// this goroutine outlives the handler. A write failure means the client
	// disconnected, which cancels the upstream call.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startTime := time.Now()
	platformName := tr.Settings().Platform
	w := sse.NewWriter(pw)

	// The opening comment flushes the response headers before the upstream
	// answers. Clients skip comment records.
	if err := w.WriteComment(openComment); err != nil {
		r.logger.Warn("client went away before stream start", "platform", platformName, "error", err)
		streamsFailed.Add(1)
		return
	}

	s, err := tr.Stream(ctx, req)
	if err != nil {
		r.logger.Error("upstream stream failed to start", "platform", platformName, "error", err)
		r.writeError(w, err.Error())
		return
	}
	defer s.Close()

	chunks := 0
	for {
		chunk, err := s.Next()
		switch {
		case errors.Is(err, io.EOF):
			// The upstream closed without a done marker: the translation is
			// as complete as it will get.
			r.logger.Info("upstream stream closed without done marker",
				"platform", platformName,
				"chunks", chunks,
				"duration", time.Since(startTime),
			)
			r.writeDone(w)
			return

		case err != nil:
			r.logger.Error("upstream stream failed", "platform", platformName, "error", err)
			r.writeError(w, fmt.Sprintf("API request error: %v", err))
			return

		case chunk.Error != "":
			r.logger.Error("upstream reported error in stream", "platform", platformName, "error", chunk.Error)
			r.writeError(w, chunk.Error)
			return

		case chunk.Done:
			r.logger.Info("stream complete",
				"platform", platformName,
				"chunks", chunks,
				"duration", time.Since(startTime),
			)
			r.writeDone(w)
			return

		case chunk.Content != "":
			if err := w.WriteJSON(textChunkFrame{TextChunk: chunk.Content}); err != nil {
				r.logger.Warn("client went away mid-stream", "platform", platformName, "error", err)
				streamsFailed.Add(1)
				return
			}
			chunks++
		}
	}
}

func (r *Relay) writeDone(w *sse.Writer) {
	if err := w.WriteJSON(doneFrame{Done: true}); err != nil {
		r.logger.Warn("could not write done frame", "error", err)
		streamsFailed.Add(1)
		return
	}
	streamsCompleted.Add(1)
}

func (r *Relay) writeError(w *sse.Writer, msg string) {
	streamsFailed.Add(1)
	if err := w.WriteJSON(llm.ErrorResponse{Error: msg}); err != nil {
		r.logger.Warn("could not write error frame", "error", err)
	}
}
