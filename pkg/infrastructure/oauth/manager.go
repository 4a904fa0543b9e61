package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stravabot/server/pkg/apperrors"
	"github.com/stravabot/server/pkg/credentials"
	"github.com/stravabot/server/pkg/observability"
)

const (
	// DefaultExpirySkew refreshes tokens this long before the provider's expiry.
	DefaultExpirySkew     = 60 * time.Second
	DefaultRefreshTimeout = 15 * time.Second
)

// ErrAccountMismatch is returned by Connect when the user already has a
// credential for a different provider account.
var ErrAccountMismatch = errors.New("already connected to a different strava account")

// Manager hands out valid access tokens, refreshing expired ones.
//
// Refreshes are collapsed per user: concurrent callers for the same user
// share one provider call and all receive its result. Inside the flight the
// record is re-read under a per-user lock, so a refresh token that was
// already rotated is never replayed.
type Manager struct {
	store    credentials.Store
	provider Provider

	flights singleflight.Group
	locks   *keyedMutex

	skew           time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

type ManagerOption func(*Manager)

// WithExpirySkew sets how early tokens are treated as expired. Zero compares
// against the provider's expiry exactly.
func WithExpirySkew(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.skew = d
		}
	}
}

func WithRefreshTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.refreshTimeout = d
		}
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(store credentials.Store, provider Provider, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:          store,
		provider:       provider,
		locks:          newKeyedMutex(),
		skew:           DefaultExpirySkew,
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessToken returns a usable access token for userID.
//
// It fails with apperrors.ErrNotConnected when no credential exists and with
// apperrors.ErrRefreshFailed when an expired token could not be refreshed.
// A failed refresh leaves the stored credential untouched.
func (m *Manager) AccessToken(ctx context.Context, userID string) (string, error) {
	rec, err := m.load(ctx, userID)
	if err != nil {
		return "", err
	}
	if !rec.ExpiredAt(m.now(), m.skew) {
		return rec.AccessToken, nil
	}

	v, err, shared := m.flights.Do(userID, func() (interface{}, error) {
		return m.refresh(ctx, userID)
	})
	if err != nil {
		return "", err
	}
	if shared {
		m.logger.Debug("Joined in-flight token refresh", "user_id", userID)
	}
	return v.(string), nil
}

func (m *Manager) load(ctx context.Context, userID string) (*credentials.Record, error) {
	rec, err := m.store.Get(ctx, userID)
	if errors.Is(err, credentials.ErrNotFound) {
		return nil, apperrors.ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return rec, nil
}

// refresh runs once per flight. The first caller's cancellation must not
// abort a refresh other callers are waiting on.
func (m *Manager) refresh(ctx context.Context, userID string) (string, error) {
	unlock := m.locks.Lock(userID)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout)
	defer cancel()

	rec, err := m.load(ctx, userID)
	if err != nil {
		return "", err
	}
	if !rec.ExpiredAt(m.now(), m.skew) {
		return rec.AccessToken, nil
	}

	logger := m.logger.With("user_id", userID)

	grant, err := m.provider.Refresh(ctx, rec.RefreshToken)
	if err == nil && (grant == nil || grant.AccessToken == "") {
		err = errMissingAccessToken
	}
	if err != nil {
		observability.RecordTokenRefresh(false)
		logger.Warn("Token refresh failed", "error", err)
		return "", fmt.Errorf("%w: %w", apperrors.ErrRefreshFailed, err)
	}

	updated := rec.Clone()
	updated.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		updated.RefreshToken = grant.RefreshToken
	}
	updated.ExpiresAt = grant.ExpiresAt
	updated.UpdatedAt = m.now().UTC()

	if err := m.store.Put(ctx, updated); err != nil {
		observability.RecordTokenRefresh(false)
		logger.Error("Failed to persist refreshed token", "error", err)
		return "", fmt.Errorf("%w: persist: %w", apperrors.ErrRefreshFailed, err)
	}

	observability.RecordTokenRefresh(true)
	logger.Info("Token refreshed", "expires_at", updated.ExpiresAt)
	return updated.AccessToken, nil
}

// Connect exchanges an authorization code and stores the resulting
// credential, replacing any previous one for the same account.
func (m *Manager) Connect(ctx context.Context, userID, code string) (*credentials.Record, error) {
	grant, err := m.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if grant == nil || grant.AccessToken == "" {
		return nil, errMissingAccessToken
	}

	unlock := m.locks.Lock(userID)
	defer unlock()

	now := m.now().UTC()
	rec := &credentials.Record{
		UserID:            userID,
		AccessToken:       grant.AccessToken,
		RefreshToken:      grant.RefreshToken,
		ExpiresAt:         grant.ExpiresAt,
		ProviderAccountID: grant.AccountID,
		ConnectedAt:       now,
		UpdatedAt:         now,
	}

	existing, err := m.store.Get(ctx, userID)
	switch {
	case errors.Is(err, credentials.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load credential: %w", err)
	default:
		if existing.ProviderAccountID != "" && rec.ProviderAccountID != "" &&
			existing.ProviderAccountID != rec.ProviderAccountID {
			return nil, ErrAccountMismatch
		}
		if existing.ProviderAccountID != "" {
			rec.ProviderAccountID = existing.ProviderAccountID
		}
		if !existing.ConnectedAt.IsZero() {
			rec.ConnectedAt = existing.ConnectedAt
		}
	}

	if err := m.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	m.logger.Info("Strava connected", "user_id", userID, "athlete_id", rec.ProviderAccountID)
	return rec, nil
}

// Disconnect removes the user's credential. Removing a missing one is not an error.
func (m *Manager) Disconnect(ctx context.Context, userID string) error {
	unlock := m.locks.Lock(userID)
	defer unlock()

	if err := m.store.Delete(ctx, userID); err != nil && !errors.Is(err, credentials.ErrNotFound) {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Status returns the stored credential, or apperrors.ErrNotConnected.
func (m *Manager) Status(ctx context.Context, userID string) (*credentials.Record, error) {
	return m.load(ctx, userID)
}
