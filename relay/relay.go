// Package relay provides the glossa translation server. It resolves upstream
// settings for each request, calls the upstream chat completions API and
// re-emits the translation to the client as a normalized event stream:
//
//	data: {"text_chunk": "..."}   zero or more
//	data: {"done": true}          or
//	data: {"error": "..."}        exactly one, last
package relay

import (
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/papercomputeco/glossa/pkg/llm"
	"github.com/papercomputeco/glossa/pkg/platform"
	"github.com/papercomputeco/glossa/pkg/translator"
	"github.com/papercomputeco/glossa/pkg/utils"
	"github.com/papercomputeco/glossa/relay/header"
)

const translatePath = "/translate_api"

// Relay is the glossa translation server.
type Relay struct {
	config        Config
	logger        *slog.Logger
	server        *fiber.App
	headerHandler *header.Handler

	mu       sync.RWMutex
	fallback platform.Fallback
}

// New creates a new Relay. The output and upload directories are created if
// they do not exist.
func New(config Config, logger *slog.Logger) (*Relay, error) {
	if config.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if config.UploadDir == "" {
		return nil, errors.New("upload directory is required")
	}
	for _, dir := range []string{config.OutputDir, config.UploadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create directory %s: %w", dir, err)
		}
	}

	if config.Env == nil {
		config.Env = platform.OSEnv
	}
	if config.BodyLimit <= 0 {
		config.BodyLimit = DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		BodyLimit:             config.BodyLimit,
		ErrorHandler:          jsonErrorHandler,
	})

	// Streams are written through a pipe and must reach the client chunk by
	// chunk, so they are never compressed.
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == translatePath
		},
	}))

	r := &Relay{
		config:        config,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		fallback:      config.Fallback,
	}

	app.Post(translatePath, r.handleTranslate)
	app.Get("/download/:filename", r.handleDownload)
	app.Get("/platforms", r.handlePlatforms)
	app.Get("/ping", r.handlePing)
	app.Get("/debug/vars", adaptor.HTTPHandler(expvar.Handler()))

	return r, nil
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		"listen", r.config.ListenAddr,
		"output_dir", r.config.OutputDir,
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"output_dir", r.config.OutputDir,
	)

	return r.server.Listener(listener)
}

// Close gracefully shuts down the relay.
func (r *Relay) Close() error {
	return r.server.Shutdown()
}

// SetFallback replaces the last-resort upstream settings. It is safe to call
// while requests are being served.
func (r *Relay) SetFallback(f platform.Fallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = f
}

// Fallback returns the current last-resort upstream settings.
func (r *Relay) Fallback() platform.Fallback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

func (r *Relay) handlePlatforms(c *fiber.Ctx) error {
	return c.JSON(platform.Presets())
}

func (r *Relay) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// newTranslator builds a translator for the settings resolved from the
// request's form fields.
func (r *Relay) newTranslator(c *fiber.Ctx) (*translator.Translator, error) {
	settings, err := platform.Resolve(platform.Overrides{
		Platform: c.FormValue("api_platform"),
		APIKey:   c.FormValue("api_key"),
		BaseURL:  c.FormValue("base_url"),
		Model:    c.FormValue("model"),
	}, r.config.Env, r.Fallback())
	if err != nil {
		return nil, err
	}

	r.logger.Debug("resolved upstream settings",
		"platform", settings.Platform,
		"base_url", settings.BaseURL,
		"base_url_source", string(settings.BaseURLSource),
		"model", settings.Model,
		"model_source", string(settings.ModelSource),
		"api_key", settings.MaskedKey(),
		"api_key_source", string(settings.APIKeySource),
	)

	opts := []translator.Option{
		translator.WithLogger(r.logger),
		translator.WithHTTPClient(r.config.HTTPClient),
	}
	if r.config.CaptureUpstream {
		opts = append(opts, translator.WithCapture(debugCapture{logger: r.logger}))
	}

	return translator.New(settings, opts...)
}

func (r *Relay) handleTranslate(c *fiber.Ctx) error {
	target := strings.TrimSpace(c.FormValue("target_lang"))
	if target == "" {
		return badRequest(c, "Target language is required.")
	}

	tr, err := r.newTranslator(c)
	if err != nil {
		r.logger.Warn("could not configure upstream", "error", err)
		return badRequest(c, err.Error())
	}

	req := translator.Request{
		TargetLang: target,
		SourceLang: strings.TrimSpace(c.FormValue("source_lang")),
	}

	if text := c.FormValue("text_input"); text != "" {
		req.Text = text
		if err := req.Validate(); err != nil {
			return badRequest(c, "Text to translate cannot be empty.")
		}

		r.logger.Info("received text translation request",
			"platform", tr.Settings().Platform,
			"target", req.TargetLang,
			"characters", len([]rune(text)),
			"preview", utils.Truncate(text, 40),
		)

		if streamRequested(c.FormValue("stream")) {
			return r.streamTranslation(c, tr, req)
		}
		return r.translateText(c, tr, req)
	}

	if fh, err := c.FormFile("file"); err == nil {
		return r.translateFile(c, tr, req, fh)
	}

	return badRequest(c, "No text or file provided for translation.")
}

func (r *Relay) translateText(c *fiber.Ctx, tr *translator.Translator, req translator.Request) error {
	out, err := tr.Translate(c.UserContext(), req)
	if err != nil {
		r.logger.Error("translation failed", "platform", tr.Settings().Platform, "error", err)
		return c.Status(statusFor(err)).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(fiber.Map{"translated_text": out})
}

// streamRequested parses the "stream" form field, which defaults to true.
func streamRequested(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch strings.ToLower(v) {
	case "no", "off":
		return false
	default:
		return true
	}
}

// statusFor maps a translation error to the HTTP status returned to the
// client.
func statusFor(err error) int {
	var httpErr *translator.HTTPError
	switch {
	case errors.Is(err, translator.ErrEmptyText),
		errors.Is(err, translator.ErrEmptyTarget),
		errors.Is(err, translator.ErrUnsupportedEncoding):
		return fiber.StatusBadRequest
	case errors.As(err, &httpErr), errors.Is(err, translator.ErrNoTranslation):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: msg})
}

func jsonErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(llm.ErrorResponse{Error: err.Error()})
}
