package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// GetSlogHandlerOptions returns standard handler options for GCP
func GetSlogHandlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Map standard keys to Cloud Logging keys
			if a.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: a.Value}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{Key: "severity", Value: a.Value}
			}
			return a
		},
	}
}

// ComponentHandler wraps a slog.Handler to prepend [component] to the message
type ComponentHandler struct {
	slog.Handler
	component string
}

func (h *ComponentHandler) WithGroup(name string) slog.Handler {
	return &ComponentHandler{
		Handler:   h.Handler.WithGroup(name),
		component: h.component,
	}
}

func (h *ComponentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	comp := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			comp = a.Value.String()
		}
	}
	return &ComponentHandler{
		Handler:   h.Handler.WithAttrs(attrs),
		component: comp,
	}
}

func (h *ComponentHandler) Handle(ctx context.Context, r slog.Record) error {
	comp := h.component
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			comp = a.Value.String()
			return false
		}
		return true
	})

	if comp != "" {
		nr := slog.NewRecord(r.Time, r.Level, fmt.Sprintf("[%s] %s", comp, r.Message), r.PC)
		r.Attrs(func(a slog.Attr) bool {
			nr.AddAttrs(a)
			return true
		})
		r = nr
	}

	return h.Handler.Handle(ctx, r)
}

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a configured logger instance
func NewLogger(serviceName, level string) *slog.Logger {
	return newLogger(os.Stdout, serviceName, level)
}

func newLogger(w io.Writer, serviceName, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, GetSlogHandlerOptions(ParseLevel(level)))
	return slog.New(&ComponentHandler{Handler: handler}).With("service", serviceName)
}
