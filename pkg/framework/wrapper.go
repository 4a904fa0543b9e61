package framework

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stravabot/server/pkg/infrastructure/sentry"
)

// FrameworkContext contains dependencies injected by the framework
type FrameworkContext struct {
	Logger      *slog.Logger
	ExecutionID string
}

// HandlerFunc is the signature for a wrapped HTTP handler. A returned error
// becomes a 500 unless the handler already wrote a response.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, fwCtx *FrameworkContext) error

type ctxKey struct{}

// FromContext returns the FrameworkContext stored by WrapHTTP.
func FromContext(ctx context.Context) (*FrameworkContext, bool) {
	fwCtx, ok := ctx.Value(ctxKey{}).(*FrameworkContext)
	return fwCtx, ok
}

// statusRecorder remembers the status written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// WrapHTTP wraps a handler with execution logging, error reporting and
// panic recovery.
func WrapHTTP(operation string, logger *slog.Logger, handler HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		execID := uuid.NewString()
		log := logger.With("execution_id", execID, "operation", operation)
		fwCtx := &FrameworkContext{Logger: log, ExecutionID: execID}

		rec := &statusRecorder{ResponseWriter: w}
		started := time.Now()
		tags := map[string]string{"operation": operation, "execution_id": execID}

		defer func() {
			if p := recover(); p != nil {
				err := sentry.CapturePanic(p, tags, log)
				log.Error("Handler panicked", "error", err)
				if rec.status == 0 {
					http.Error(rec, "Internal Server Error", http.StatusInternalServerError)
				}
			}
		}()

		log.Debug("Request started", "method", r.Method, "path", r.URL.Path)

		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, fwCtx))
		if err := handler(rec, r, fwCtx); err != nil {
			sentry.CaptureException(err, tags, log)
			log.Error("Request failed", "error", err, "duration_ms", time.Since(started).Milliseconds())
			if rec.status == 0 {
				http.Error(rec, "Internal Server Error", http.StatusInternalServerError)
			}
			return
		}

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		log.Info("Request completed", "status", status, "duration_ms", time.Since(started).Milliseconds())
	}
}
