package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stravabot/server/pkg/apperrors"
	"github.com/stravabot/server/pkg/integrations/strava"
)

type stubTokens struct {
	token string
	err   error
}

func (s stubTokens) AccessToken(ctx context.Context, userID string) (string, error) {
	return s.token, s.err
}

// fakeProvider answers per activity id; missing entries fail.
type fakeProvider struct {
	list    []strava.SummaryActivity
	listErr error
	details map[int64]*strava.DetailedActivity
	laps    map[int64][]strava.Lap
	delays  map[int64]time.Duration

	mu          sync.Mutex
	detailCalls map[int64]int
	lapCalls    map[int64]int
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (p *fakeProvider) ListRecent(ctx context.Context, token string, count int) ([]strava.SummaryActivity, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	if count < len(p.list) {
		return p.list[:count], nil
	}
	return p.list, nil
}

func (p *fakeProvider) GetDetail(ctx context.Context, token string, id int64) (*strava.DetailedActivity, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		m := p.maxInFlight.Load()
		if n <= m || p.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	p.mu.Lock()
	if p.detailCalls == nil {
		p.detailCalls = map[int64]int{}
	}
	p.detailCalls[id]++
	p.mu.Unlock()

	if d, ok := p.delays[id]; ok {
		time.Sleep(d)
	}
	if d, ok := p.details[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("detail %d: boom", id)
}

func (p *fakeProvider) ListLaps(ctx context.Context, token string, id int64) ([]strava.Lap, error) {
	p.mu.Lock()
	if p.lapCalls == nil {
		p.lapCalls = map[int64]int{}
	}
	p.lapCalls[id]++
	p.mu.Unlock()

	if l, ok := p.laps[id]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("laps %d: boom", id)
}

func activities(ids ...int64) []strava.SummaryActivity {
	out := make([]strava.SummaryActivity, len(ids))
	for i, id := range ids {
		out[i] = strava.SummaryActivity{ID: id, Name: fmt.Sprintf("Activity %d", id), SportType: "Run", Distance: 5000, MovingTime: 1500}
	}
	return out
}

func TestFetcher_NativeSplitsShortCircuitLaps(t *testing.T) {
	p := &fakeProvider{
		list: activities(1),
		details: map[int64]*strava.DetailedActivity{
			1: {SplitsMetric: []strava.Split{{Split: 1, Distance: 1000, MovingTime: 300}, {Split: 2, Distance: 1000, MovingTime: 290}}},
		},
	}

	f := NewFetcher(stubTokens{token: "tok"}, p)
	got, err := f.FetchRecentWithSplits(context.Background(), "42", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, SplitSourceNative, got[0].SplitSource)
	assert.Len(t, got[0].Splits, 2)
	assert.Equal(t, 2, got[0].Splits[1].Index)
	assert.Zero(t, p.lapCalls[1], "laps must not be requested when native splits exist")
}

func TestFetcher_FallsBackToLaps(t *testing.T) {
	p := &fakeProvider{
		list:    activities(1),
		details: map[int64]*strava.DetailedActivity{1: {}},
		laps: map[int64][]strava.Lap{
			1: {{LapIndex: 7, Distance: 400, MovingTime: 90, AverageSpeed: 4.4, TotalElevationGain: 2}, {LapIndex: 8, Distance: 400, MovingTime: 92}},
		},
	}

	f := NewFetcher(stubTokens{token: "tok"}, p)
	got, err := f.FetchRecentWithSplits(context.Background(), "42", 5)
	require.NoError(t, err)

	assert.Equal(t, SplitSourceLaps, got[0].SplitSource)
	require.Len(t, got[0].Splits, 2)
	assert.Equal(t, 1, got[0].Splits[0].Index, "lap segments get a synthetic 1-based index")
	assert.Equal(t, 2, got[0].Splits[1].Index)
	assert.InDelta(t, 2.0, got[0].Splits[0].ElevationDifference, 0.001)
}

func TestFetcher_DetailErrorFallsBackToLaps(t *testing.T) {
	p := &fakeProvider{
		list: activities(1),
		laps: map[int64][]strava.Lap{1: {{Distance: 1000, MovingTime: 300}}},
	}

	got, err := NewFetcher(stubTokens{token: "tok"}, p).FetchRecentWithSplits(context.Background(), "42", 5)
	require.NoError(t, err)
	assert.Equal(t, SplitSourceLaps, got[0].SplitSource)
}

func TestFetcher_PartialEnrichmentDoesNotFailPage(t *testing.T) {
	p := &fakeProvider{
		list: activities(1, 2, 3),
		details: map[int64]*strava.DetailedActivity{
			1: {SplitsMetric: []strava.Split{{Split: 1, Distance: 1000}}},
			3: {SplitsMetric: []strava.Split{{Split: 1, Distance: 1000}}},
		},
	}

	got, err := NewFetcher(stubTokens{token: "tok"}, p).FetchRecentWithSplits(context.Background(), "42", 5)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, SplitSourceNative, got[0].SplitSource)
	assert.Equal(t, SplitSourceUnavailable, got[1].SplitSource)
	assert.NotNil(t, got[1].Splits)
	assert.Empty(t, got[1].Splits)
	assert.Equal(t, SplitSourceNative, got[2].SplitSource)
}

func TestFetcher_PreservesProviderOrder(t *testing.T) {
	ids := []int64{50, 40, 30, 20, 10}
	p := &fakeProvider{
		list:    activities(ids...),
		details: map[int64]*strava.DetailedActivity{},
		// Earlier activities finish last.
		delays: map[int64]time.Duration{50: 40 * time.Millisecond, 40: 30 * time.Millisecond, 30: 20 * time.Millisecond, 20: 10 * time.Millisecond},
	}
	for _, id := range ids {
		p.details[id] = &strava.DetailedActivity{SplitsMetric: []strava.Split{{Split: 1, Distance: float64(id)}}}
	}

	got, err := NewFetcher(stubTokens{token: "tok"}, p, WithConcurrency(5)).FetchRecentWithSplits(context.Background(), "42", 5)
	require.NoError(t, err)
	require.Len(t, got, 5)

	for i, id := range ids {
		assert.Equal(t, id, got[i].ID)
		assert.InDelta(t, float64(id), got[i].Splits[0].Distance, 0.001, "splits must stay attached to their activity")
	}
}

func TestFetcher_BoundedConcurrency(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	p := &fakeProvider{list: activities(ids...), details: map[int64]*strava.DetailedActivity{}, delays: map[int64]time.Duration{}}
	for _, id := range ids {
		p.details[id] = &strava.DetailedActivity{SplitsMetric: []strava.Split{{Split: 1}}}
		p.delays[id] = 10 * time.Millisecond
	}

	_, err := NewFetcher(stubTokens{token: "tok"}, p, WithConcurrency(2)).FetchRecentWithSplits(context.Background(), "42", 8)
	require.NoError(t, err)
	assert.LessOrEqual(t, p.maxInFlight.Load(), int32(2))
}

func TestFetcher_ListFailureIsUpstreamError(t *testing.T) {
	p := &fakeProvider{listErr: errors.New("Unauthorized (status 401)")}

	got, err := NewFetcher(stubTokens{token: "tok"}, p).FetchRecentWithSplits(context.Background(), "42", 5)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Empty(t, p.detailCalls)
}

func TestFetcher_TokenErrorsPropagateUnchanged(t *testing.T) {
	for _, sentinel := range []error{apperrors.ErrNotConnected, apperrors.ErrRefreshFailed} {
		p := &fakeProvider{list: activities(1)}

		_, err := NewFetcher(stubTokens{err: sentinel}, p).FetchRecentWithSplits(context.Background(), "42", 5)
		assert.ErrorIs(t, err, sentinel)
		assert.NotErrorIs(t, err, apperrors.ErrUpstream)
		assert.Empty(t, p.detailCalls, "nothing is fetched without a token")
	}
}

func TestFetcher_EmptyList(t *testing.T) {
	got, err := NewFetcher(stubTokens{token: "tok"}, &fakeProvider{}).FetchRecentWithSplits(context.Background(), "42", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
