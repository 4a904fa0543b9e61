// Package apperrors holds the failure taxonomy shared by the token manager,
// the activity fetcher and the pipeline coordinator.
package apperrors

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotConnected means no credential is on file for the user.
	ErrNotConnected = errors.New("strava not connected")

	// ErrRefreshFailed means the provider rejected the refresh token or the
	// refresh call itself failed. The stored credential is left untouched.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrUpstream means the activity list call failed, timed out or returned
	// a body that could not be decoded.
	ErrUpstream = errors.New("upstream error")
)

// UpstreamError wraps a failed provider call with the operation that failed.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}

// NewUpstreamError creates a new UpstreamError
func NewUpstreamError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Err: err}
}

// IsTimeout reports whether err was caused by a deadline or cancellation.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
