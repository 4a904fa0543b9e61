// Package stravabot registers the bot's HTTP function with the Functions
// Framework.
package stravabot

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/stravabot/server/pkg/bootstrap"
)

const serviceName = "stravabot"

var (
	handler     http.Handler
	handlerOnce sync.Once
	handlerErr  error
)

func init() {
	functions.HTTP("StravaBot", StravaBot)
}

func initHandler(ctx context.Context) (http.Handler, error) {
	handlerOnce.Do(func() {
		cfg, err := bootstrap.LoadConfig()
		if err != nil {
			slog.Error("Invalid configuration", "error", err)
			handlerErr = err
			return
		}

		logger := bootstrap.NewLogger(serviceName, cfg.LogLevel)
		slog.SetDefault(logger)

		svc, err := bootstrap.NewService(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize service", "error", err)
			handlerErr = err
			return
		}
		handler = svc.Handler()
	})
	return handler, handlerErr
}

// StravaBot serves the webhook, the OAuth callback and the debug routes.
func StravaBot(w http.ResponseWriter, r *http.Request) {
	h, err := initHandler(context.WithoutCancel(r.Context()))
	if err != nil {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	h.ServeHTTP(w, r)
}
