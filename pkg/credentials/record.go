// Package credentials defines the per-user Strava credential row and the
// store contract every backend implements.
package credentials

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get when no row exists for the user.
var ErrNotFound = errors.New("credential not found")

// Record is the stored OAuth state for one user.
// ExpiresAt is epoch seconds as reported by the provider.
type Record struct {
	UserID            string `json:"user_id"`
	AccessToken       string `json:"access_token"`
	RefreshToken      string `json:"refresh_token"`
	ExpiresAt         int64  `json:"expires_at"`
	ProviderAccountID string `json:"provider_account_id"`

	ConnectedAt time.Time `json:"connected_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Expiry returns ExpiresAt as a time.Time.
func (r *Record) Expiry() time.Time {
	return time.Unix(r.ExpiresAt, 0)
}

// ExpiredAt reports whether the access token must be refreshed at now.
// The comparison is non-strict: a token expiring exactly at now+skew is expired.
func (r *Record) ExpiredAt(now time.Time, skew time.Duration) bool {
	return now.Add(skew).Unix() >= r.ExpiresAt
}

// Clone returns a copy safe to mutate.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// Store persists at most one Record per user. Put overwrites.
type Store interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Put(ctx context.Context, record *Record) error
	Delete(ctx context.Context, userID string) error
}
