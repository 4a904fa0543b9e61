package framework

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWrapHTTP_Success(t *testing.T) {
	var execID string
	h := WrapHTTP("test", discard(), func(w http.ResponseWriter, r *http.Request, fwCtx *FrameworkContext) error {
		execID = fwCtx.ExecutionID
		fromCtx, ok := FromContext(r.Context())
		assert.True(t, ok)
		assert.Same(t, fwCtx, fromCtx)
		w.WriteHeader(http.StatusAccepted)
		return nil
	})

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.NotEmpty(t, execID)
}

func TestWrapHTTP_ErrorBecomes500(t *testing.T) {
	h := WrapHTTP("test", discard(), func(w http.ResponseWriter, r *http.Request, fwCtx *FrameworkContext) error {
		return errors.New("store unavailable")
	})

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "store unavailable")
}

func TestWrapHTTP_ErrorAfterWriteKeepsStatus(t *testing.T) {
	h := WrapHTTP("test", discard(), func(w http.ResponseWriter, r *http.Request, fwCtx *FrameworkContext) error {
		w.WriteHeader(http.StatusBadRequest)
		return errors.New("late failure")
	})

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWrapHTTP_RecoversPanic(t *testing.T) {
	h := WrapHTTP("test", discard(), func(w http.ResponseWriter, r *http.Request, fwCtx *FrameworkContext) error {
		panic("nil pointer")
	})

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() { h(rr, httptest.NewRequest(http.MethodGet, "/", nil)) })
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
