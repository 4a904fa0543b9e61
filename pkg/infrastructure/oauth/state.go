package oauth

import (
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

const DefaultStateTTL = 15 * time.Minute

// StateCache maps the OAuth state parameter to the chat that requested the
// authorize link. States are single use and expire after the TTL.
//
// The cache is per process: a callback must reach the instance that issued
// the link.
type StateCache struct {
	cache *ttlcache.Cache[string, string]
}

func NewStateCache(ttl time.Duration) *StateCache {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()

	return &StateCache{cache: cache}
}

// Issue returns a fresh state bound to userID.
func (s *StateCache) Issue(userID string) string {
	state := uuid.NewString()
	s.cache.Set(state, userID, ttlcache.DefaultTTL)
	return state
}

// Consume returns the user bound to state and invalidates it.
func (s *StateCache) Consume(state string) (string, bool) {
	item, ok := s.cache.GetAndDelete(state)
	if !ok || item == nil {
		return "", false
	}
	return item.Value(), true
}

// Stop ends the expiry goroutine.
func (s *StateCache) Stop() {
	s.cache.Stop()
}
