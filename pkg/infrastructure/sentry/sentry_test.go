package sentry

import (
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
)

func TestInit_NoDSN(t *testing.T) {
	assert.NoError(t, Init(Config{}, nil))
}

func TestScrubEvent(t *testing.T) {
	event := &sentry.Event{Request: &sentry.Request{
		Headers: map[string]string{
			"Authorization":                   "Bearer abc",
			"X-Telegram-Bot-Api-Secret-Token": "s3cret",
			"Content-Type":                    "application/json",
		},
		QueryString: "code=abc&state=xyz",
	}}

	out := scrubEvent(event, nil)
	assert.NotContains(t, out.Request.Headers, "Authorization")
	assert.NotContains(t, out.Request.Headers, "X-Telegram-Bot-Api-Secret-Token")
	assert.Equal(t, "application/json", out.Request.Headers["Content-Type"])
	assert.Empty(t, out.Request.QueryString)
}

func TestCapturePanic(t *testing.T) {
	err := CapturePanic("boom", nil, nil)
	assert.EqualError(t, err, "panic: boom")

	cause := errors.New("nil map")
	assert.Same(t, cause, CapturePanic(cause, nil, nil))
}
