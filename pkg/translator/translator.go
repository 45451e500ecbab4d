// Package translator calls an OpenAI-compatible chat completions API to
// translate text, either as a stream of incremental chunks or in one piece.
package translator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/glossa/pkg/llm"
	"github.com/papercomputeco/glossa/pkg/llm/provider"
	"github.com/papercomputeco/glossa/pkg/llm/provider/openai"
	"github.com/papercomputeco/glossa/pkg/logger"
	"github.com/papercomputeco/glossa/pkg/platform"
	"github.com/papercomputeco/glossa/relay/header"
)

// SystemPrompt is sent ahead of every translation request.
const SystemPrompt = "You are a professional and helpful translator. Translate accurately and naturally."

const chatCompletionsPath = "/chat/completions"

// Request describes one piece of text to translate.
type Request struct {
	Text       string
	TargetLang string

	// SourceLang is optional; the model detects the language when empty.
	SourceLang string
}

// Validate reports whether the request can be sent upstream.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	if strings.TrimSpace(r.TargetLang) == "" {
		return ErrEmptyTarget
	}
	return nil
}

// Translator sends translation requests to a single upstream.
type Translator struct {
	settings   platform.Settings
	provider   provider.Provider
	headers    *header.Handler
	httpClient *http.Client
	logger     *slog.Logger
	capture    io.Writer
	timeout    time.Duration
	batchChars int
}

// New creates a Translator for the resolved settings. It fails with
// ErrInvalidSettings when the base URL or model is missing, or when the API
// key is missing for a platform that requires one.
func New(settings platform.Settings, opts ...Option) (*Translator, error) {
	o := options{
		logger:     logger.Nop(),
		provider:   openai.New(),
		timeout:    defaultTimeout,
		batchChars: defaultBatchChars,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if settings.Platform == "" {
		settings.Platform = platform.Infer(settings.BaseURL)
	}

	switch {
	case settings.APIKey == "" && !settings.KeyOptional():
		return nil, fmt.Errorf("%w: API key must be provided", ErrInvalidSettings)
	case settings.BaseURL == "":
		return nil, fmt.Errorf("%w: base URL must be provided", ErrInvalidSettings)
	case settings.Model == "":
		return nil, fmt.Errorf("%w: model must be provided", ErrInvalidSettings)
	}

	if o.httpClient == nil {
		o.httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: defaultDialTimeout}).DialContext,
				TLSHandshakeTimeout:   defaultDialTimeout,
				ForceAttemptHTTP2:     true,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
		}
	}

	t := &Translator{
		settings:   settings,
		provider:   o.provider,
		headers:    header.NewHandler(),
		httpClient: o.httpClient,
		logger:     o.logger,
		capture:    o.capture,
		timeout:    o.timeout,
		batchChars: o.batchChars,
	}

	t.logger.Debug("translator initialized",
		"platform", settings.Platform,
		"base_url", settings.BaseURL,
		"model", settings.Model,
		"api_key", settings.MaskedKey(),
	)

	return t, nil
}

// Settings returns the settings the translator was created with.
func (t *Translator) Settings() platform.Settings {
	return t.settings
}

// Endpoint returns the chat completions URL for the configured base URL.
func (t *Translator) Endpoint() string {
	return strings.TrimRight(t.settings.BaseURL, "/") + chatCompletionsPath
}

// Messages builds the system and user messages for req.
func Messages(req Request) []llm.Message {
	var prompt string
	if src := strings.TrimSpace(req.SourceLang); src != "" {
		prompt = fmt.Sprintf("Translate the following text from %s to %s:\n\n%s", src, req.TargetLang, req.Text)
	} else {
		prompt = fmt.Sprintf("Translate the following text to %s:\n\n%s", req.TargetLang, req.Text)
	}

	return []llm.Message{
		llm.NewSystemMessage(SystemPrompt),
		llm.NewUserMessage(prompt),
	}
}

// chatRequest builds the upstream request. Local runtimes such as ollama get
// no generation parameters so that their model defaults apply.
func (t *Translator) chatRequest(req Request, stream bool) *llm.ChatRequest {
	cr := &llm.ChatRequest{
		Model:    t.settings.Model,
		Messages: Messages(req),
		Stream:   stream,
	}

	if t.settings.Platform != platform.Ollama {
		temperature := defaultTemperature
		maxTokens := defaultMaxTokens
		cr.Temperature = &temperature
		cr.MaxTokens = &maxTokens
	}

	return cr
}

// do sends req upstream and returns the response when its status is < 400.
// Any other status is returned as an *HTTPError.
func (t *Translator) do(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := t.provider.BuildRequest(t.chatRequest(req, stream))
	if err != nil {
		return nil, fmt.Errorf("could not encode upstream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not create upstream request: %w", err)
	}
	t.headers.SetUpstreamRequestHeaders(httpReq, t.settings, stream)

	t.logger.Info("sending request to upstream",
		"platform", t.settings.Platform,
		"url", httpReq.URL.String(),
		"model", t.settings.Model,
		"stream", stream,
		"api_key", t.settings.MaskedKey(),
	)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request to %s failed: %w", t.settings.Platform, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		httpErr := newHTTPError(resp, t.settings.Platform, t.settings.Model)
		t.logger.Error("upstream returned error",
			"platform", t.settings.Platform,
			"status", resp.StatusCode,
			"detail", httpErr.Detail,
		)
		return nil, httpErr
	}

	return resp, nil
}

// Translate translates req in a single, non-streaming call and returns the
// trimmed translation.
func (t *Translator) Translate(ctx context.Context, req Request) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	resp, err := t.do(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read upstream response: %w", err)
	}

	parsed, err := t.provider.ParseResponse(payload)
	if err != nil {
		return "", fmt.Errorf("could not parse upstream response from %s: %w", t.settings.Platform, err)
	}
	if parsed.Content == "" {
		return "", ErrNoTranslation
	}

	if parsed.Usage != nil {
		t.logger.Debug("upstream usage",
			"prompt_tokens", parsed.Usage.PromptTokens,
			"completion_tokens", parsed.Usage.CompletionTokens,
		)
	}

	return parsed.Content, nil
}
