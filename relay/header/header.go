// Package header provides header handling for the glossa relay.
//
// The relay sits between a client and an upstream LLM provider like so:
//
//	Client <--> Relay <--> Upstream LLM Provider
//
// and each leg gets its own headers: the upstream leg carries the platform's
// credentials, the client leg carries the normalized event stream.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/glossa/pkg/platform"
	"github.com/papercomputeco/glossa/pkg/utils"
)

// Handler sets headers on both legs of a relayed translation.
type Handler struct {
	userAgent string
}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{userAgent: "glossa/" + utils.Version}
}

// ollamaPlaceholderKeys are values people commonly configure for ollama to
// satisfy clients that insist on a key. They are never sent upstream.
var ollamaPlaceholderKeys = map[string]struct{}{
	"none":   {},
	"ollama": {},
}

// SetUpstreamRequestHeaders sets the content negotiation and authorization
// headers for a request to the platform described by s.
//
// Every platform uses Bearer authentication. The header is omitted when no
// key is configured, and for ollama when the key is a placeholder.
func (h *Handler) SetUpstreamRequestHeaders(req *http.Request, s platform.Settings, stream bool) {
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", h.userAgent)

	if key := upstreamKey(s); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	if s.Platform == platform.OpenRouter {
		// OpenRouter attributes traffic by app title.
		req.Header.Set("X-Title", "glossa")
	}
}

// SetClientStreamHeaders prepares the client response for a
// text/event-stream body.
func (h *Handler) SetClientStreamHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// Reverse proxies such as nginx buffer responses by default, which would
	// hold back every chunk until the stream ends.
	c.Set("X-Accel-Buffering", "no")
}

func upstreamKey(s platform.Settings) string {
	key := strings.TrimSpace(s.APIKey)
	if key == "" {
		return ""
	}

	if s.Platform == platform.Ollama {
		if _, placeholder := ollamaPlaceholderKeys[strings.ToLower(key)]; placeholder {
			return ""
		}
	}

	return key
}
