package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	gcfirestore "cloud.google.com/go/firestore"
	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"golang.org/x/text/language"

	"github.com/stravabot/server/pkg/api"
	"github.com/stravabot/server/pkg/bot"
	"github.com/stravabot/server/pkg/credentials"
	"github.com/stravabot/server/pkg/domain/activity"
	"github.com/stravabot/server/pkg/infrastructure/oauth"
	infrapubsub "github.com/stravabot/server/pkg/infrastructure/pubsub"
	"github.com/stravabot/server/pkg/infrastructure/sentry"
	infrastorage "github.com/stravabot/server/pkg/infrastructure/storage"
	"github.com/stravabot/server/pkg/infrastructure/telegram"
	"github.com/stravabot/server/pkg/integrations/strava"
	"github.com/stravabot/server/pkg/pipeline"
	"github.com/stravabot/server/pkg/storage/firestore"
	"github.com/stravabot/server/pkg/storage/redis"
	"github.com/stravabot/server/pkg/storage/sheets"
	"github.com/stravabot/server/pkg/summarizer"
)

// Service holds initialized dependencies
type Service struct {
	Config *Config
	Logger *slog.Logger

	Store    credentials.Store
	OAuth    *oauth.StravaProvider
	Tokens   *oauth.Manager
	States   *oauth.StateCache
	Fetcher  *activity.Fetcher
	Pipeline *pipeline.Coordinator
	Notifier *telegram.Client
	Bot      *bot.Bot

	// Archive is nil unless GCS_ARTIFACT_BUCKET is set.
	Archive *infrastorage.RunArchive

	closers []func() error
}

// NewService initializes all standard dependencies
func NewService(ctx context.Context, cfg *Config, logger *slog.Logger) (*Service, error) {
	svc := &Service{Config: cfg, Logger: logger}

	logger.Info("Initializing service",
		"project_id", cfg.ProjectID,
		"credential_backend", cfg.CredentialBackend,
		"environment", cfg.Environment,
	)

	if err := sentry.Init(sentry.Config{DSN: cfg.SentryDSN, Environment: cfg.Environment}, logger); err != nil {
		return nil, err
	}

	store, err := svc.credentialStore(ctx)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.Store = store

	svc.OAuth = oauth.NewStravaProvider(oauth.ProviderConfig{
		ClientID:     cfg.StravaClientID,
		ClientSecret: cfg.StravaClientSecret,
		RedirectURL:  cfg.RedirectURI(),
		Scopes:       cfg.StravaScopes,
		Timeout:      cfg.UpstreamTimeout,
	})
	svc.Tokens = oauth.NewManager(store, svc.OAuth,
		oauth.WithExpirySkew(cfg.TokenExpirySkew),
		oauth.WithManagerLogger(logger.With("component", "oauth")),
	)
	svc.States = oauth.NewStateCache(cfg.OAuthStateTTL)
	svc.closers = append(svc.closers, func() error { svc.States.Stop(); return nil })

	svc.Fetcher = activity.NewFetcher(svc.Tokens,
		strava.NewClient(strava.WithTimeout(cfg.UpstreamTimeout)),
		activity.WithConcurrency(cfg.SplitConcurrency),
		activity.WithLogger(logger.With("component", "activities")),
	)

	sum, err := svc.summarizer(ctx)
	if err != nil {
		svc.Close()
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithCount(cfg.ActivityCount),
		pipeline.WithLogger(logger.With("component", "pipeline")),
	}
	sinks, err := svc.sinks(ctx)
	if err != nil {
		svc.Close()
		return nil, err
	}
	opts = append(opts, sinks...)
	svc.Pipeline = pipeline.NewCoordinator(svc.Fetcher, sum, opts...)

	var tgOpts []telegram.Option
	if cfg.UpstreamTimeout > 0 {
		tgOpts = append(tgOpts, telegram.WithHTTPClient(&http.Client{Timeout: cfg.UpstreamTimeout}))
	}
	svc.Notifier = telegram.NewClient(cfg.TelegramBotToken, tgOpts...)
	svc.Bot = bot.New(svc.Tokens, svc.OAuth, svc.States, svc.Pipeline, svc.Notifier, logger.With("component", "bot"))
	return svc, nil
}

// Handler returns the HTTP surface served by both the function and the
// standalone server.
func (s *Service) Handler() http.Handler {
	cfg := api.Config{
		WebhookSecret: s.Config.TelegramWebhookSecret,
		ActivityCount: s.Config.ActivityCount,
		DebugToken:    s.Config.DebugToken,
	}
	if s.Archive != nil {
		cfg.Runs = s.Archive
	}
	return api.NewRouter(s.Bot, s.Fetcher, cfg, s.Logger.With("component", "api"))
}

func (s *Service) credentialStore(ctx context.Context) (credentials.Store, error) {
	cfg := s.Config
	switch cfg.CredentialBackend {
	case BackendFirestore:
		fsClient, err := gcfirestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			s.Logger.Error("Firestore init failed", "error", err)
			return nil, fmt.Errorf("firestore init: %w", err)
		}
		client := firestore.NewClient(fsClient)
		s.closers = append(s.closers, client.Close)
		return firestore.NewCredentialStore(client), nil

	case BackendSheets:
		svc, err := sheets.NewService(ctx, s.sheetsConfig())
		if err != nil {
			return nil, err
		}
		return sheets.NewCredentialStore(svc, cfg.SheetID, sheets.DefaultTokensSheet), nil

	case BackendRedis:
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			s.Logger.Error("Redis init failed", "error", err)
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		return redis.NewCredentialStore(client, redis.DefaultPrefix), nil

	case BackendMemory:
		s.Logger.Warn("Using in-memory credential store; credentials are lost on restart")
		return credentials.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown credential backend %q", cfg.CredentialBackend)
}

func (s *Service) sheetsConfig() sheets.Config {
	return sheets.Config{
		SpreadsheetID: s.Config.SheetID,
		ClientEmail:   s.Config.GoogleClientEmail,
		PrivateKey:    s.Config.GooglePrivateKey,
	}
}

func (s *Service) summarizer(ctx context.Context) (pipeline.Summarizer, error) {
	if s.Config.GeminiAPIKey == "" {
		s.Logger.Info("Summarizer: stats (GEMINI_API_KEY not set)")
		return summarizer.NewStats(language.Indonesian), nil
	}

	g, err := summarizer.NewGemini(ctx, s.Config.GeminiAPIKey, s.Config.GeminiModel)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, g.Close)
	s.Logger.Info("Summarizer: Gemini")
	return g, nil
}

// sinks builds the optional run recorders: the spreadsheet activity log,
// the GCS run archive and the analyzed event publisher.
func (s *Service) sinks(ctx context.Context) ([]pipeline.Option, error) {
	cfg := s.Config
	var opts []pipeline.Option

	if cfg.SheetID != "" {
		svc, err := sheets.NewService(ctx, s.sheetsConfig())
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithActivityLog(sheets.NewActivityLog(svc, cfg.SheetID, sheets.DefaultActivitiesSheet)))
		s.Logger.Info("Activity log: Google Sheets", "sheet_id", cfg.SheetID)
	}

	if cfg.GCSArtifactBucket != "" {
		gcsClient, err := gcstorage.NewClient(ctx)
		if err != nil {
			s.Logger.Error("Storage init failed", "error", err)
			return nil, fmt.Errorf("storage init: %w", err)
		}
		s.closers = append(s.closers, gcsClient.Close)
		s.Archive = infrastorage.NewRunArchive(&infrastorage.StorageAdapter{Client: gcsClient}, cfg.GCSArtifactBucket)
		opts = append(opts, pipeline.WithArchiver(s.Archive))
	}

	var pub infrapubsub.MessagePublisher
	if cfg.EnablePublish {
		psClient, err := gcpubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			s.Logger.Error("PubSub init failed", "error", err)
			return nil, fmt.Errorf("pubsub init: %w", err)
		}
		s.closers = append(s.closers, psClient.Close)
		pub = &infrapubsub.PubSubAdapter{Client: psClient}
		s.Logger.Info("Pub/Sub: REAL (ENABLE_PUBLISH=true)")
	} else {
		pub = &infrapubsub.LogPublisher{Logger: s.Logger.With("component", "pubsub")}
		s.Logger.Info("Pub/Sub: log only")
	}
	opts = append(opts, pipeline.WithPublisher(infrapubsub.NewAnalyzedPublisher(pub, cfg.AnalyzedTopic)))

	return opts, nil
}

// Close releases clients in reverse order of creation.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
