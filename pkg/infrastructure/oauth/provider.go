package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// Endpoint is Strava's OAuth endpoint. Strava wants client credentials in
// the form body, not a Basic auth header.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://www.strava.com/oauth/authorize",
	TokenURL:  "https://www.strava.com/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// DefaultScopes is sent as a single comma separated value, the form Strava expects.
const DefaultScopes = "read,activity:read"

// errMissingAccessToken is returned when the provider answered without an
// access token. That absence is the failure signal, whatever the status.
var errMissingAccessToken = errors.New("provider response missing access_token")

// errMissingExpiry is returned for a grant with neither expires_at nor
// expires_in. Storing it would force a refresh on every request.
var errMissingExpiry = errors.New("provider response missing token expiry")

// Grant is the credential material returned by a code exchange or refresh.
// ExpiresAt is the provider's own expires_at in epoch seconds.
type Grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	AccountID    string
}

// Provider performs the two OAuth token grants.
type Provider interface {
	Exchange(ctx context.Context, code string) (*Grant, error)
	Refresh(ctx context.Context, refreshToken string) (*Grant, error)
}

// ProviderConfig configures the Strava OAuth client.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       string
	Endpoint     oauth2.Endpoint
	HTTPClient   *http.Client
	Timeout      time.Duration
}

// StravaProvider implements Provider on golang.org/x/oauth2.
type StravaProvider struct {
	config     *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
}

func NewStravaProvider(cfg ProviderConfig) *StravaProvider {
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = Endpoint
	}
	scopes := cfg.Scopes
	if scopes == "" {
		scopes = DefaultScopes
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &StravaProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{scopes},
			Endpoint:     endpoint,
		},
		httpClient: hc,
		timeout:    timeout,
	}
}

// AuthCodeURL builds the authorize link sent to the chat.
func (p *StravaProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

func (p *StravaProvider) withClient(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), cancel
}

// Exchange trades an authorization code for the first grant.
func (p *StravaProvider) Exchange(ctx context.Context, code string) (*Grant, error) {
	ctx, cancel := p.withClient(ctx)
	defer cancel()

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}
	return grantFromToken(tok)
}

// Refresh trades a refresh token for a new grant. Strava rotates refresh
// tokens, so the returned RefreshToken replaces the old one.
func (p *StravaProvider) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	ctx, cancel := p.withClient(ctx)
	defer cancel()

	// An empty access token makes the source refresh immediately.
	tok, err := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return grantFromToken(tok)
}

func grantFromToken(tok *oauth2.Token) (*Grant, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, errMissingAccessToken
	}

	g := &Grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}

	if v, ok := int64Extra(tok.Extra("expires_at")); ok {
		g.ExpiresAt = v
	} else if !tok.Expiry.IsZero() {
		g.ExpiresAt = tok.Expiry.Unix()
	}
	if g.ExpiresAt <= 0 {
		return nil, errMissingExpiry
	}

	if athlete, ok := tok.Extra("athlete").(map[string]interface{}); ok {
		if id, ok := int64Extra(athlete["id"]); ok && id > 0 {
			g.AccountID = strconv.FormatInt(id, 10)
		}
	}
	return g, nil
}

// int64Extra reads a numeric field from the raw token response.
func int64Extra(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
