package activity

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/stravabot/server/pkg/apperrors"
	"github.com/stravabot/server/pkg/integrations/strava"
	"github.com/stravabot/server/pkg/observability"
)

const (
	DefaultCount       = 5
	DefaultConcurrency = 4
)

// TokenSource hands out a valid access token for a user.
type TokenSource interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// Provider is the subset of the Strava API the fetcher needs.
type Provider interface {
	ListRecent(ctx context.Context, token string, count int) ([]strava.SummaryActivity, error)
	GetDetail(ctx context.Context, token string, activityID int64) (*strava.DetailedActivity, error)
	ListLaps(ctx context.Context, token string, activityID int64) ([]strava.Lap, error)
}

// Fetcher retrieves recent activities and resolves splits for each.
// The list call is all-or-nothing; split lookups degrade per activity.
type Fetcher struct {
	tokens      TokenSource
	provider    Provider
	concurrency int
	logger      *slog.Logger
}

type FetcherOption func(*Fetcher)

// WithConcurrency caps the number of activities resolved in parallel.
func WithConcurrency(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func NewFetcher(tokens TokenSource, provider Provider, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		tokens:      tokens,
		provider:    provider,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchRecentWithSplits returns up to count activities, newest first, each
// with its resolved (possibly empty) split sequence.
//
// Token errors (apperrors.ErrNotConnected, apperrors.ErrRefreshFailed) are
// returned unchanged. A failed list call is an apperrors.ErrUpstream.
func (f *Fetcher) FetchRecentWithSplits(ctx context.Context, userID string, count int) ([]Summary, error) {
	if count <= 0 {
		count = DefaultCount
	}

	token, err := f.tokens.AccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	raw, err := f.provider.ListRecent(ctx, token, count)
	if err != nil {
		return nil, apperrors.NewUpstreamError("list activities", err)
	}

	out := make([]Summary, len(raw))
	for i := range raw {
		out[i] = FromStrava(raw[i])
	}

	// Each goroutine writes only its own slot, so order is preserved
	// regardless of completion order.
	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i := range out {
		g.Go(func() error {
			segments, source := f.resolveSplits(ctx, token, out[i].ID)
			out[i].Splits = segments
			out[i].SplitSource = source
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

// resolveSplits tries the activity detail, then laps. Failures are logged
// and absorbed.
func (f *Fetcher) resolveSplits(ctx context.Context, token string, activityID int64) ([]SplitSegment, SplitSource) {
	logger := f.logger.With("activity_id", activityID)

	detail, err := f.provider.GetDetail(ctx, token, activityID)
	switch {
	case err != nil:
		logger.Warn("Activity detail unavailable, trying laps", "error", err)
	case detail != nil && len(detail.SplitsMetric) > 0:
		observability.RecordSplitResolution(SplitSourceNative.String())
		return SegmentsFromSplits(detail.SplitsMetric), SplitSourceNative
	default:
		logger.Debug("Activity has no metric splits, trying laps")
	}

	laps, err := f.provider.ListLaps(ctx, token, activityID)
	switch {
	case err != nil:
		logger.Warn("Activity laps unavailable", "error", err)
	case len(laps) > 0:
		observability.RecordSplitResolution(SplitSourceLaps.String())
		return SegmentsFromLaps(laps), SplitSourceLaps
	}

	observability.RecordSplitResolution(SplitSourceUnavailable.String())
	return []SplitSegment{}, SplitSourceUnavailable
}
