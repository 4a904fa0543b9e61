// Package api exposes the bot over HTTP: the Telegram webhook, the Strava
// OAuth redirect, token-guarded debug routes, health and metrics.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stravabot/server/pkg/apperrors"
	"github.com/stravabot/server/pkg/bot"
	"github.com/stravabot/server/pkg/domain/activity"
	"github.com/stravabot/server/pkg/framework"
	"github.com/stravabot/server/pkg/infrastructure/storage"
	"github.com/stravabot/server/pkg/infrastructure/telegram"
)

// SecretHeader carries the secret_token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// DebugTokenHeader authenticates the debug routes.
const DebugTokenHeader = "X-Debug-Token"

const maxUpdateBytes = 1 << 20

// Bot is the chat side of the service.
type Bot interface {
	HandleUpdate(ctx context.Context, update *telegram.Update)
	CompleteAuthorization(ctx context.Context, state, code, providerErr string) (string, error)
}

// ActivityLister returns recent activities with splits resolved.
type ActivityLister interface {
	FetchRecentWithSplits(ctx context.Context, userID string, count int) ([]activity.Summary, error)
}

// RunLoader reads back an archived pipeline run.
type RunLoader interface {
	Load(ctx context.Context, userID, runID string) (*storage.RunSnapshot, error)
}

// Config for the router. The debug routes are only mounted when DebugToken
// is set; /runs additionally needs Runs.
type Config struct {
	WebhookSecret string
	ActivityCount int
	DebugToken    string
	Runs          RunLoader
}

type handlers struct {
	bot        Bot
	activities ActivityLister
	cfg        Config
}

// NewRouter builds the HTTP surface.
func NewRouter(b Bot, activities ActivityLister, cfg Config, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ActivityCount <= 0 {
		cfg.ActivityCount = activity.DefaultCount
	}
	h := &handlers{bot: b, activities: activities, cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.HandleFunc("/telegram/webhook", framework.WrapHTTP("telegram_webhook", logger, h.webhook))
	r.Get("/strava/callback", framework.WrapHTTP("strava_callback", logger, h.callback))

	if cfg.DebugToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(h.requireDebugToken)
			r.Get("/activities", framework.WrapHTTP("list_activities", logger, h.listActivities))
			if cfg.Runs != nil {
				r.Get("/runs/{runID}", framework.WrapHTTP("get_run", logger, h.getRun))
			}
		})
	}

	return r
}

func (h *handlers) requireDebugToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(DebugTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.DebugToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) webhook(w http.ResponseWriter, r *http.Request, fwCtx *framework.FrameworkContext) error {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil
	}

	if h.cfg.WebhookSecret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.WebhookSecret)) != 1 {
			fwCtx.Logger.Warn("Webhook secret mismatch")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return nil
		}
	}

	var update telegram.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		fwCtx.Logger.Warn("Invalid update body", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return nil
	}

	fwCtx.Logger.Debug("Handling update", "update_id", update.UpdateID)
	h.bot.HandleUpdate(r.Context(), &update)

	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *handlers) callback(w http.ResponseWriter, r *http.Request, fwCtx *framework.FrameworkContext) error {
	q := r.URL.Query()
	state := q.Get("state")
	code := q.Get("code")
	providerErr := q.Get("error")

	if state == "" || (code == "" && providerErr == "") {
		writeText(w, http.StatusBadRequest, "Missing code or state.")
		return nil
	}

	userID, err := h.bot.CompleteAuthorization(r.Context(), state, code, providerErr)
	switch {
	case err == nil:
		fwCtx.Logger.Info("Strava connected", "user_id", userID)
		writeText(w, http.StatusOK, "Strava connected. You can return to Telegram and send /analisis.")
		return nil
	case errors.Is(err, bot.ErrInvalidState):
		writeText(w, http.StatusBadRequest, "This link has expired. Send /connect in Telegram to get a new one.")
		return nil
	case errors.Is(err, bot.ErrAuthorizationDenied):
		writeText(w, http.StatusBadRequest, "Authorization was not granted.")
		return nil
	}
	return err
}

type activitiesResponse struct {
	UserID     string             `json:"userId"`
	Count      int                `json:"count"`
	Activities []activity.Summary `json:"activities"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) listActivities(w http.ResponseWriter, r *http.Request, fwCtx *framework.FrameworkContext) error {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId is required"})
		return nil
	}

	acts, err := h.activities.FetchRecentWithSplits(r.Context(), userID, h.cfg.ActivityCount)
	switch {
	case errors.Is(err, apperrors.ErrNotConnected):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "strava not connected"})
		return nil
	case errors.Is(err, apperrors.ErrRefreshFailed), errors.Is(err, apperrors.ErrUpstream):
		fwCtx.Logger.Warn("Activity listing failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "strava unavailable"})
		return nil
	case err != nil:
		return err
	}

	if acts == nil {
		acts = []activity.Summary{}
	}
	writeJSON(w, http.StatusOK, activitiesResponse{UserID: userID, Count: len(acts), Activities: acts})
	return nil
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request, fwCtx *framework.FrameworkContext) error {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId is required"})
		return nil
	}
	runID := chi.URLParam(r, "runID")

	snap, err := h.cfg.Runs.Load(r.Context(), userID, runID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "run not found"})
		return nil
	case err != nil:
		return err
	}

	fwCtx.Logger.Debug("Loaded archived run", "user_id", userID, "run_id", runID)
	writeJSON(w, http.StatusOK, snap)
	return nil
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
