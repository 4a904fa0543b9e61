package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendFirestore = "firestore"
	BackendSheets    = "sheets"
	BackendRedis     = "redis"
	BackendMemory    = "memory"
)

// Config holds everything read from the environment.
type Config struct {
	Port        string
	LogLevel    string
	Environment string
	BaseURL     string

	StravaClientID     string
	StravaClientSecret string
	StravaRedirectURI  string
	StravaScopes       string

	TelegramBotToken      string
	TelegramWebhookSecret string

	CredentialBackend string
	ProjectID         string
	SheetID           string
	GoogleClientEmail string
	GooglePrivateKey  string
	RedisURL          string

	GeminiAPIKey string
	GeminiModel  string

	ActivityCount    int
	SplitConcurrency int
	UpstreamTimeout  time.Duration
	TokenExpirySkew  time.Duration
	OAuthStateTTL    time.Duration

	EnablePublish     bool
	AnalyzedTopic     string
	GCSArtifactBucket string

	SentryDSN string

	// DebugToken enables /activities and /runs; requests must send it in
	// X-Debug-Token.
	DebugToken string
}

// LoadConfig reads configuration from environment variables. A .env file in
// the working directory is loaded first when present; real environment
// variables win over it.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	cfg := &Config{
		Port:        getenv("PORT", "8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Environment: getenv("ENVIRONMENT", "development"),
		BaseURL:     strings.TrimRight(os.Getenv("BASE_URL"), "/"),

		StravaClientID:     os.Getenv("STRAVA_CLIENT_ID"),
		StravaClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
		StravaRedirectURI:  os.Getenv("STRAVA_REDIRECT_URI"),
		StravaScopes:       getenv("STRAVA_SCOPES", "read,activity:read"),

		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),

		CredentialBackend: strings.ToLower(getenv("CREDENTIAL_BACKEND", BackendFirestore)),
		ProjectID:         os.Getenv("GOOGLE_CLOUD_PROJECT"),
		SheetID:           os.Getenv("SHEET_ID"),
		GoogleClientEmail: os.Getenv("GOOGLE_CLIENT_EMAIL"),
		GooglePrivateKey:  os.Getenv("GOOGLE_PRIVATE_KEY"),
		RedisURL:          getenv("REDIS_URL", "redis://localhost:6379/0"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  os.Getenv("GEMINI_MODEL"),

		ActivityCount:    intEnv("ACTIVITY_COUNT", 5, &errs),
		SplitConcurrency: intEnv("SPLIT_CONCURRENCY", 4, &errs),
		UpstreamTimeout:  durationEnv("UPSTREAM_TIMEOUT", 10*time.Second, false, &errs),
		TokenExpirySkew:  durationEnv("TOKEN_EXPIRY_SKEW", 60*time.Second, true, &errs),
		OAuthStateTTL:    durationEnv("OAUTH_STATE_TTL", 15*time.Minute, false, &errs),

		EnablePublish:     os.Getenv("ENABLE_PUBLISH") == "true",
		AnalyzedTopic:     getenv("ANALYZED_TOPIC", "activities-analyzed"),
		GCSArtifactBucket: os.Getenv("GCS_ARTIFACT_BUCKET"),

		SentryDSN: os.Getenv("SENTRY_DSN"),

		DebugToken: os.Getenv("DEBUG_TOKEN"),
	}

	switch cfg.CredentialBackend {
	case BackendFirestore, BackendSheets, BackendRedis, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("CREDENTIAL_BACKEND: unknown backend %q", cfg.CredentialBackend))
	}
	if cfg.CredentialBackend == BackendSheets && cfg.SheetID == "" {
		errs = append(errs, errors.New("SHEET_ID is required for the sheets backend"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RedirectURI is where Strava sends the user back after authorization.
func (c *Config) RedirectURI() string {
	if c.StravaRedirectURI != "" {
		return c.StravaRedirectURI
	}
	if c.BaseURL != "" {
		return c.BaseURL + "/strava/callback"
	}
	return ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: expected a positive integer, got %q", key, v))
		return fallback
	}
	return n
}

// durationEnv accepts Go durations ("90s") or plain seconds ("90"). Zero is
// only accepted when allowZero is set.
func durationEnv(key string, fallback time.Duration, allowZero bool, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	d, err := time.ParseDuration(v)
	if n, aerr := strconv.Atoi(v); aerr == nil {
		d, err = time.Duration(n)*time.Second, nil
	}
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}
