// Package httputil provides HTTP error handling utilities shared by the
// Strava, Telegram and OAuth clients.
package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxErrorBodySize is the maximum size of error body kept on an HTTPError.
const MaxErrorBodySize = 500

// HTTPError represents a non-2xx upstream response. Body is for logs only
// and must never be shown to end users.
type HTTPError struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
	URL        string
}

func (e *HTTPError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s (status %d): %s", e.Status, e.StatusCode, e.Message)
	case e.Body != "":
		return fmt.Sprintf("%s (status %d): %s", e.Status, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s (status %d)", e.Status, e.StatusCode)
}

// truncate truncates a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// errorEnvelope covers the error shapes of the APIs we call:
// Strava {"message": ...}, Telegram {"description": ...}, OAuth {"error": ...}.
type errorEnvelope struct {
	Message     string `json:"message"`
	Description string `json:"description"`
	Error       string `json:"error"`
}

func extractMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	switch {
	case env.Message != "":
		return env.Message
	case env.Description != "":
		return env.Description
	}
	return env.Error
}

// ParseErrorResponse returns nil for 2xx responses and an *HTTPError
// otherwise. The response body is re-wrapped so the caller can still read it.
func ParseErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	resp.Body.Close()

	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	httpErr := &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
	}
	if err == nil && len(bodyBytes) > 0 {
		httpErr.Body = truncate(string(bodyBytes), MaxErrorBodySize)
		httpErr.Message = truncate(extractMessage(bodyBytes), MaxErrorBodySize)
	}
	if resp.Request != nil && resp.Request.URL != nil {
		// Query strings may carry tokens; keep scheme, host and path only.
		u := *resp.Request.URL
		u.RawQuery = ""
		httpErr.URL = u.String()
	}
	return httpErr
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
