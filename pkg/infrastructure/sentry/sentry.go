package sentry

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

type Config struct {
	DSN              string
	Environment      string
	Release          string
	ServerName       string
	TracesSampleRate float64
}

// sensitiveHeaders never leave the process.
var sensitiveHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Telegram-Bot-Api-Secret-Token",
}

// Init initializes Sentry. An empty DSN disables error tracking.
func Init(cfg Config, logger *slog.Logger) error {
	if cfg.DSN == "" {
		if logger != nil {
			logger.Warn("Sentry DSN not configured - error tracking disabled")
		}
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		TracesSampleRate: cfg.TracesSampleRate,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		if logger != nil {
			logger.Error("Failed to initialize Sentry", "error", err)
		}
		return fmt.Errorf("sentry init: %w", err)
	}

	if logger != nil {
		logger.Info("Sentry initialized", "environment", cfg.Environment, "release", cfg.Release)
	}
	return nil
}

func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request == nil {
		return event
	}
	for _, h := range sensitiveHeaders {
		delete(event.Request.Headers, h)
		delete(event.Request.Headers, http.CanonicalHeaderKey(h))
	}
	// Callback query strings carry OAuth codes.
	event.Request.QueryString = ""
	return event
}

// CaptureException reports err with tags on an isolated scope.
func CaptureException(err error, tags map[string]string, logger *slog.Logger) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})

	if logger != nil {
		logger.Debug("Exception captured in Sentry", "error", err.Error())
	}
}

// CapturePanic converts a recovered panic value to an error and reports it.
func CapturePanic(recovered interface{}, tags map[string]string, logger *slog.Logger) error {
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", recovered)
	}
	CaptureException(err, tags, logger)
	return err
}

// Flush waits for buffered events. Call it before the process exits.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
