package oauth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stravabot/server/pkg/apperrors"
	"github.com/stravabot/server/pkg/credentials"
)

type fakeProvider struct {
	refreshCalls  atomic.Int32
	exchangeCalls atomic.Int32
	delay         time.Duration
	grant         *Grant
	err           error
	lastRefresh   atomic.Value
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*Grant, error) {
	p.exchangeCalls.Add(1)
	return p.grant, p.err
}

func (p *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	p.refreshCalls.Add(1)
	p.lastRefresh.Store(refreshToken)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.grant, p.err
}

var fixedNow = time.Unix(1_700_000_000, 0)

func clock() time.Time { return fixedNow }

func seed(t *testing.T, store credentials.Store, expiresAt int64) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), &credentials.Record{
		UserID:            "42",
		AccessToken:       "A1",
		RefreshToken:      "R1",
		ExpiresAt:         expiresAt,
		ProviderAccountID: "9001",
	}))
}

func TestManager_ValidTokenSkipsProvider(t *testing.T) {
	store := credentials.NewMemoryStore()
	seed(t, store, fixedNow.Add(time.Hour).Unix())
	p := &fakeProvider{}

	m := NewManager(store, p, WithClock(clock))
	tok, err := m.AccessToken(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "A1", tok)
	assert.Zero(t, p.refreshCalls.Load())
}

func TestManager_NotConnected(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(credentials.NewMemoryStore(), p, WithClock(clock))

	_, err := m.AccessToken(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)
	assert.Zero(t, p.refreshCalls.Load())
}

func TestManager_RefreshesExpiredToken(t *testing.T) {
	store := credentials.NewMemoryStore()
	seed(t, store, fixedNow.Add(-time.Minute).Unix())
	newExpiry := fixedNow.Add(6 * time.Hour).Unix()
	p := &fakeProvider{grant: &Grant{AccessToken: "A2", RefreshToken: "R2", ExpiresAt: newExpiry}}

	m := NewManager(store, p, WithClock(clock))
	tok, err := m.AccessToken(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "A2", tok)
	assert.Equal(t, "R1", p.lastRefresh.Load())

	rec, err := store.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "A2", rec.AccessToken)
	assert.Equal(t, "R2", rec.RefreshToken)
	assert.Equal(t, newExpiry, rec.ExpiresAt)
	assert.Equal(t, "9001", rec.ProviderAccountID, "account id is never touched by a refresh")
}

func TestManager_ExpiryBoundaryIsNonStrict(t *testing.T) {
	store := credentials.NewMemoryStore()
	seed(t, store, fixedNow.Unix())
	p := &fakeProvider{grant: &Grant{AccessToken: "A2", ExpiresAt: fixedNow.Add(time.Hour).Unix()}}

	m := NewManager(store, p, WithClock(clock), WithExpirySkew(0))
	_, err := m.AccessToken(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.refreshCalls.Load())
}

func TestManager_SkewRefreshesEarly(t *testing.T) {
	store := credentials.NewMemoryStore()
	seed(t, store, fixedNow.Add(30*time.Second).Unix())
	p := &fakeProvider{grant: &Grant{AccessToken: "A2", ExpiresAt: fixedNow.Add(time.Hour).Unix()}}

	m := NewManager(store, p, WithClock(clock))
	tok, err := m.AccessToken(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "A2", tok)
}

func TestManager_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	store := credentials.NewMemoryStore()
	seed(t, store, fixedNow.Add(-time.Minute).Unix())
	p := &fakeProvider{grant: &Grant{AccessToken: "A2", ExpiresAt: fixedNow.Add(time.Hour).Unix()}}

	_, err := NewManager(store, p, WithClock(clock)).AccessToken(context.Background(), "42")
	require.NoError(t, err)

	rec, _ := store.Get(context.Background(), "42")
	assert.Equal(t, "R1", rec.RefreshToken)
}

func TestManager_FailedRefreshLeavesRecordUntouched(t *testing.T) {
	store := credentials.NewMemoryStore()
	expired := fixedNow.Add(-time.Minute).Unix()
	seed(t, store, expired)

	for name, p := range map[string]*fakeProvider{
		"provider error":       {err: errors.New("invalid_grant")},
		"missing access token": {grant: &Grant{RefreshToken: "R2"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewManager(store, p, WithClock(clock)).AccessToken(context.Background(), "42")
			assert.ErrorIs(t, err, apperrors.ErrRefreshFailed)

			rec, _ := store.Get(context.Background(), "42")
			assert.Equal(t, "A1", rec.AccessToken)
			assert.Equal(t, "R1", rec.RefreshToken)
			assert.Equal(t, expired, rec.ExpiresAt)
		})
	}
}

func TestManager_ConcurrentCallersShareOneRefresh(t *testing.T) {
	store := credentials.NewMemoryStore()
	seed(t, store, fixedNow.Add(-time.Minute).Unix())
	p := &fakeProvider{
		delay: 50 * time.Millisecond,
		grant: &Grant{AccessToken: "A2", RefreshToken: "R2", ExpiresAt: fixedNow.Add(time.Hour).Unix()},
	}
	m := NewManager(store, p, WithClock(clock))

	const callers = 16
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.AccessToken(context.Background(), "42")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.refreshCalls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "A2", tokens[i])
	}
	assert.Zero(t, m.locks.size())
}

func TestManager_CallerCancellationDoesNotAbortRefresh(t *testing.T) {
	store := credentials.NewMemoryStore()
	seed(t, store, fixedNow.Add(-time.Minute).Unix())
	p := &fakeProvider{grant: &Grant{AccessToken: "A2", ExpiresAt: fixedNow.Add(time.Hour).Unix()}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tok, err := NewManager(store, p, WithClock(clock)).AccessToken(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "A2", tok)
}

func TestManager_Connect(t *testing.T) {
	store := credentials.NewMemoryStore()
	p := &fakeProvider{grant: &Grant{AccessToken: "A1", RefreshToken: "R1", ExpiresAt: fixedNow.Add(time.Hour).Unix(), AccountID: "9001"}}
	m := NewManager(store, p, WithClock(clock))

	rec, err := m.Connect(context.Background(), "42", "code")
	require.NoError(t, err)
	assert.Equal(t, "9001", rec.ProviderAccountID)
	assert.Equal(t, fixedNow.UTC(), rec.ConnectedAt)

	// Reconnecting replaces the row rather than adding one.
	p.grant = &Grant{AccessToken: "A9", RefreshToken: "R9", ExpiresAt: fixedNow.Add(2 * time.Hour).Unix(), AccountID: "9001"}
	rec, err = m.Connect(context.Background(), "42", "code2")
	require.NoError(t, err)
	assert.Equal(t, "A9", rec.AccessToken)
	assert.Equal(t, 1, store.Len())
}

func TestManager_ConnectRejectsOtherAccount(t *testing.T) {
	store := credentials.NewMemoryStore()
	seed(t, store, fixedNow.Add(time.Hour).Unix())
	p := &fakeProvider{grant: &Grant{AccessToken: "B1", AccountID: "7"}}

	_, err := NewManager(store, p, WithClock(clock)).Connect(context.Background(), "42", "code")
	assert.ErrorIs(t, err, ErrAccountMismatch)

	rec, _ := store.Get(context.Background(), "42")
	assert.Equal(t, "A1", rec.AccessToken)
}

func TestManager_ConnectExchangeError(t *testing.T) {
	store := credentials.NewMemoryStore()
	p := &fakeProvider{err: errors.New("bad code")}

	_, err := NewManager(store, p).Connect(context.Background(), "42", "code")
	assert.Error(t, err)
	assert.Zero(t, store.Len())
}

func TestManager_Disconnect(t *testing.T) {
	store := credentials.NewMemoryStore()
	seed(t, store, fixedNow.Add(time.Hour).Unix())
	m := NewManager(store, &fakeProvider{}, WithClock(clock))

	require.NoError(t, m.Disconnect(context.Background(), "42"))
	require.NoError(t, m.Disconnect(context.Background(), "42"))

	_, err := m.Status(context.Background(), "42")
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)
}
