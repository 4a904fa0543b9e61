// Package redis keeps credentials as one hash per user.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stravabot/server/pkg/credentials"
)

const DefaultPrefix = "stravabot"

// hashClient is the part of redis.Cmdable the store uses.
type hashClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CredentialStore implements credentials.Store on Redis hashes. A Put
// replaces every field, so a key always holds exactly one record.
type CredentialStore struct {
	client hashClient
	prefix string
}

func NewCredentialStore(client hashClient, prefix string) *CredentialStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &CredentialStore{client: client, prefix: prefix}
}

// NewClient parses a redis:// URL and pings the server.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (s *CredentialStore) key(userID string) string {
	return fmt.Sprintf("%s:credential:%s", s.prefix, userID)
}

func (s *CredentialStore) Get(ctx context.Context, userID string) (*credentials.Record, error) {
	res, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(res) == 0 {
		return nil, credentials.ErrNotFound
	}

	expiresAt, err := strconv.ParseInt(res["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at for %s: %w", userID, err)
	}

	return &credentials.Record{
		UserID:            userID,
		AccessToken:       res["access_token"],
		RefreshToken:      res["refresh_token"],
		ExpiresAt:         expiresAt,
		ProviderAccountID: res["provider_account_id"],
		ConnectedAt:       parseUnix(res["connected_at"]),
		UpdatedAt:         parseUnix(res["updated_at"]),
	}, nil
}

func (s *CredentialStore) Put(ctx context.Context, record *credentials.Record) error {
	entry := map[string]interface{}{
		"access_token":        record.AccessToken,
		"refresh_token":       record.RefreshToken,
		"expires_at":          record.ExpiresAt,
		"provider_account_id": record.ProviderAccountID,
		"connected_at":        unixOrZero(record.ConnectedAt),
		"updated_at":          unixOrZero(record.UpdatedAt),
	}
	if err := s.client.HSet(ctx, s.key(record.UserID), entry).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func parseUnix(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}
