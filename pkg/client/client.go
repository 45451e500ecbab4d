// Package client talks to a glossa relay.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/papercomputeco/glossa/pkg/llm"
	"github.com/papercomputeco/glossa/pkg/logger"
	"github.com/papercomputeco/glossa/pkg/stream"
)

// DefaultRelayURL is where "glossa serve" listens by default.
const DefaultRelayURL = "http://localhost:5000"

// ErrEmptyResponse is returned when the relay answered 2xx without any
// recognizable field.
var ErrEmptyResponse = errors.New("relay response contained no translation")

// UpstreamError is a failure reported by the relay, either as a non-2xx
// response or as an error event inside a stream.
type UpstreamError struct {
	// StatusCode is the relay's HTTP status, or 200 for in-stream errors.
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != http.StatusOK {
		return fmt.Sprintf("relay error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return "translation error: " + e.Message
}

// Request is one translation request.
type Request struct {
	Platform   string
	APIKey     string
	BaseURL    string
	Model      string
	TargetLang string
	SourceLang string

	// Text is translated when File is nil.
	Text string

	// File, when set, is uploaded as FileName and translated as a text
	// file decoded with Encoding.
	File     io.Reader
	FileName string
	Encoding string

	// NoStream asks the relay for a single JSON answer instead of a stream.
	NoStream bool
}

// Result is the outcome of a translation.
type Result struct {
	// Text is the translated text, concatenated from every chunk when
	// streamed.
	Text string

	// FileURL is the relay path of a translated file.
	FileURL string

	// Completion describes how a streamed translation ended. It is the zero
	// value for non-streamed results.
	Completion stream.Completion
}

// Status returns a one-line summary of how the translation ended.
func (r *Result) Status() string {
	switch c := r.Completion; {
	case r.FileURL != "":
		return "file translation complete"
	case c.Termination == stream.TerminationNone:
		return "translation complete"
	case c.Failed():
		return "translation failed: " + c.ErrorMessage
	case !c.HasContent():
		return "translation complete (no content)"
	case c.ClosedByTransport():
		return "translation complete (stream closed by relay)"
	default:
		return "translation complete"
	}
}

// Client posts translation requests to a relay.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// New creates a Client for the relay at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultRelayURL
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Translate sends req to the relay. For streamed answers onChunk is called
// with every text chunk as it arrives; it may be nil.
//
// An error event in the stream is returned as an *UpstreamError together
// with the partial Result.
func (c *Client) Translate(ctx context.Context, req Request, onChunk func(string)) (*Result, error) {
	body, contentType, err := encodeForm(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate_api", body)
	if err != nil {
		return nil, fmt.Errorf("could not create relay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "text/event-stream, application/json")

	c.logger.Debug("sending translation request",
		"relay", c.baseURL,
		"platform", req.Platform,
		"target", req.TargetLang,
		"file", req.FileName,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("could not reach relay at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, relayError(resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		return c.consume(ctx, resp.Body, onChunk)
	}

	return decodeJSONResult(resp.Body)
}

func (c *Client) consume(ctx context.Context, body io.Reader, onChunk func(string)) (*Result, error) {
	var text strings.Builder

	completion, err := stream.Consume(ctx, body, func(ev stream.Event) error {
		if chunk, ok := ev.(stream.TextChunk); ok {
			text.WriteString(chunk.Text)
			if onChunk != nil {
				onChunk(chunk.Text)
			}
		}
		return nil
	}, stream.WithLogger(c.logger))

	res := &Result{Text: text.String(), Completion: completion}
	if err != nil {
		return res, err
	}

	c.logger.Debug("stream finished",
		"termination", completion.Termination.String(),
		"chunks", completion.Chunks,
	)

	if completion.Failed() {
		return res, &UpstreamError{StatusCode: http.StatusOK, Message: completion.ErrorMessage}
	}
	return res, nil
}

// Download copies the translated file at fileURL, a path returned in
// Result.FileURL, to w.
func (c *Client) Download(ctx context.Context, fileURL string, w io.Writer) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+fileURL, nil)
	if err != nil {
		return fmt.Errorf("could not create download request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("could not reach relay at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return relayError(resp)
	}

	_, err = io.Copy(w, resp.Body)
	return err
}

// encodeForm builds the multipart form the relay expects.
func encodeForm(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"api_platform", req.Platform},
		{"api_key", req.APIKey},
		{"base_url", req.BaseURL},
		{"model", req.Model},
		{"target_lang", req.TargetLang},
		{"source_lang", req.SourceLang},
		{"stream", fmt.Sprint(!req.NoStream)},
	}
	if req.File == nil {
		fields = append(fields, struct{ name, value string }{"text_input", req.Text})
	} else if req.Encoding != "" {
		fields = append(fields, struct{ name, value string }{"encoding", req.Encoding})
	}

	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("could not encode form field %s: %w", f.name, err)
		}
	}

	if req.File != nil {
		fw, err := mw.CreateFormFile("file", req.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("could not encode file: %w", err)
		}
		if _, err := io.Copy(fw, req.File); err != nil {
			return nil, "", fmt.Errorf("could not read file: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return &buf, mw.FormDataContentType(), nil
}

type jsonResult struct {
	TranslatedText    string `json:"translated_text"`
	TranslatedFileURL string `json:"translated_file_url"`
	Error             string `json:"error"`
}

func decodeJSONResult(body io.Reader) (*Result, error) {
	var out jsonResult
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, fmt.Errorf("could not decode relay response: %w", err)
	}

	switch {
	case out.Error != "":
		return nil, &UpstreamError{StatusCode: http.StatusOK, Message: out.Error}
	case out.TranslatedFileURL != "":
		return &Result{FileURL: out.TranslatedFileURL}, nil
	case out.TranslatedText != "":
		return &Result{Text: out.TranslatedText}, nil
	default:
		return nil, ErrEmptyResponse
	}
}

// relayError reads a non-2xx relay response into an *UpstreamError.
func relayError(resp *http.Response) error {
	msg := http.StatusText(resp.StatusCode)

	var body llm.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err == nil && body.Error != "" {
		msg = body.Error
	}

	return &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
}
