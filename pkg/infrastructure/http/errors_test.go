package httputil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseErrorResponse_Success(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Body:       http.NoBody,
	}

	assert.NoError(t, ParseErrorResponse(resp))
}

func TestParseErrorResponse_StravaFault(t *testing.T) {
	body := `{"message":"Authorization Error","errors":[{"resource":"Athlete","field":"access_token","code":"invalid"}]}`
	resp := &http.Response{
		StatusCode: 401,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    httptest.NewRequest("GET", "https://www.strava.com/api/v3/athlete/activities?per_page=5", nil),
	}

	err := ParseErrorResponse(resp)
	require.Error(t, err)

	httpErr, ok := err.(*HTTPError)
	require.True(t, ok, "expected *HTTPError, got %T", err)
	assert.Equal(t, 401, httpErr.StatusCode)
	assert.Equal(t, "Authorization Error", httpErr.Message)
	assert.Equal(t, "https://www.strava.com/api/v3/athlete/activities", httpErr.URL)
	assert.Equal(t, "Unauthorized (status 401): Authorization Error", httpErr.Error())
	assert.Equal(t, 401, StatusCode(fmt.Errorf("wrapped: %w", err)))
}

func TestParseErrorResponse_TelegramDescription(t *testing.T) {
	resp := &http.Response{
		StatusCode: 400,
		Body:       io.NopCloser(strings.NewReader(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)),
	}

	err := ParseErrorResponse(resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestParseErrorResponse_BodyRewrap(t *testing.T) {
	body := `not json at all`
	resp := &http.Response{
		StatusCode: 502,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    httptest.NewRequest("GET", "https://api.example.com/test", nil),
	}

	err := ParseErrorResponse(resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not json at all")

	rewrapped, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	assert.Equal(t, body, string(rewrapped))
}

func TestParseErrorResponse_TruncatesLargeBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: 500,
		Body:       io.NopCloser(strings.NewReader(strings.Repeat("x", 1000))),
	}

	httpErr := ParseErrorResponse(resp).(*HTTPError)
	assert.Len(t, httpErr.Body, MaxErrorBodySize+3)
	assert.True(t, strings.HasSuffix(httpErr.Body, "..."))
}

func TestStatusCode_NonHTTPError(t *testing.T) {
	assert.Equal(t, 0, StatusCode(fmt.Errorf("dial tcp: refused")))
}
