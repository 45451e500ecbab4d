package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrInvalidSettings is returned by New when the resolved settings
	// cannot be used to reach an upstream.
	ErrInvalidSettings = errors.New("invalid translator settings")

	// ErrEmptyText is returned when there is nothing to translate.
	ErrEmptyText = errors.New("text to translate cannot be empty")

	// ErrEmptyTarget is returned when no target language was given.
	ErrEmptyTarget = errors.New("target language cannot be empty")

	// ErrNoTranslation is returned when the upstream answered without any
	// translated text.
	ErrNoTranslation = errors.New("no translation found in upstream response")
)

// HTTPError is returned when the upstream answers with a status >= 400.
type HTTPError struct {
	StatusCode int
	Platform   string
	Model      string

	// Detail is the most specific message found in the response body.
	Detail string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("API HTTP Error %d: %s", e.StatusCode, e.Message())
	if e.Detail != "" {
		msg += " Details: " + e.Detail
	}
	return msg
}

// Message returns a human readable explanation of the status code.
func (e *HTTPError) Message() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return "Unauthorized. API Key is invalid, missing, or expired."
	case e.StatusCode == http.StatusForbidden:
		return "Forbidden. API Key may lack permissions for this model/operation."
	case e.StatusCode == http.StatusNotFound:
		return fmt.Sprintf("Not Found. Model '%s' or API endpoint incorrect.", e.Model)
	case e.StatusCode == http.StatusTooManyRequests:
		return "Rate Limit Exceeded. Please wait and try again or check your plan."
	case e.StatusCode >= 500:
		return "API Server Error. Please try again later."
	default:
		return "A client-side or unexpected API error occurred."
	}
}

// newHTTPError builds an HTTPError from a failed upstream response. At most
// maxErrorBodyPreview bytes of the body are read.
func newHTTPError(resp *http.Response, platformName, model string) *HTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyPreview))

	return &HTTPError{
		StatusCode: resp.StatusCode,
		Platform:   platformName,
		Model:      model,
		Detail:     errorDetail(body),
	}
}

// errorDetail digs the message out of the error body shapes used by
// OpenAI-compatible upstreams, falling back to the raw body.
func errorDetail(body []byte) string {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return ""
	}

	var shaped struct {
		Error  json.RawMessage `json:"error"`
		Errors struct {
			Message string `json:"message"`
		} `json:"errors"`
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &shaped); err != nil {
		return raw
	}

	if len(shaped.Error) > 0 {
		var s string
		if json.Unmarshal(shaped.Error, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(shaped.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}

	switch {
	case shaped.Errors.Message != "":
		return shaped.Errors.Message
	case shaped.Message != "":
		return shaped.Message
	}

	if s, ok := shaped.Detail.(string); ok && s != "" {
		return s
	}

	return raw
}
