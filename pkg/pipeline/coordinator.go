// Package pipeline runs one analysis request end to end: authorize, list,
// resolve splits, summarize, then record the run. It turns every failure into
// one of a small set of outcomes the bot can show to a user.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/stravabot/server/pkg/apperrors"
	"github.com/stravabot/server/pkg/domain/activity"
	httputil "github.com/stravabot/server/pkg/infrastructure/http"
	"github.com/stravabot/server/pkg/observability"
)

// Outcome is the user-facing result of a run.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeEmpty
	OutcomeNotConnected
	OutcomeTemporaryFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeNotConnected:
		return "not_connected"
	default:
		return "temporary_failure"
	}
}

// Stage is the last step a run reached.
type Stage int

const (
	StageAuthorizing Stage = iota
	StageListing
	StageEnrichingSplits
	StageSummarizing
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageAuthorizing:
		return "authorizing"
	case StageListing:
		return "listing"
	case StageEnrichingSplits:
		return "enriching_splits"
	case StageSummarizing:
		return "summarizing"
	default:
		return "done"
	}
}

type Fetcher interface {
	FetchRecentWithSplits(ctx context.Context, userID string, count int) ([]activity.Summary, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, activities []activity.Summary) (string, error)
}

type ActivityLog interface {
	Append(ctx context.Context, userID string, activities []activity.Summary) error
}

type Publisher interface {
	PublishAnalyzed(ctx context.Context, userID, runID string, count int) error
}

type Archiver interface {
	Archive(ctx context.Context, userID, runID string, activities []activity.Summary) error
}

// Result of one Run. Activities are set whenever the fetch succeeded, even
// if the summary could not be produced.
type Result struct {
	RunID      string
	Outcome    Outcome
	Stage      Stage
	Activities []activity.Summary
	Summary    string
	SummaryErr error
	// Err is the cause of a NotConnected or TemporaryFailure outcome.
	Err error
}

// Coordinator sequences a run. It never retries: a failed run is reported
// once and the user decides whether to ask again.
type Coordinator struct {
	fetcher    Fetcher
	summarizer Summarizer
	log        ActivityLog
	publisher  Publisher
	archiver   Archiver
	count      int
	logger     *slog.Logger
}

type Option func(*Coordinator)

func WithActivityLog(l ActivityLog) Option {
	return func(c *Coordinator) { c.log = l }
}

func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

func WithArchiver(a Archiver) Option {
	return func(c *Coordinator) { c.archiver = a }
}

func WithCount(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.count = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCoordinator(fetcher Fetcher, summarizer Summarizer, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:    fetcher,
		summarizer: summarizer,
		count:      activity.DefaultCount,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one analysis for userID.
func (c *Coordinator) Run(ctx context.Context, userID string) Result {
	res := Result{RunID: uuid.NewString(), Stage: StageAuthorizing}
	logger := c.logger.With("user_id", userID, "run_id", res.RunID)

	activities, err := c.fetcher.FetchRecentWithSplits(ctx, userID, c.count)
	if err != nil {
		res.Outcome, res.Stage = classify(err)
		res.Err = err
		logger.Log(ctx, failureLevel(err), "Activity fetch failed",
			"outcome", res.Outcome.String(),
			"stage", res.Stage.String(),
			"timeout", apperrors.IsTimeout(err),
			"upstream_status", httputil.StatusCode(err),
			"error", err,
		)
		observability.RecordPipelineRun(res.Outcome.String())
		return res
	}

	res.Stage = StageEnrichingSplits
	res.Activities = activities

	if len(activities) == 0 {
		res.Outcome = OutcomeEmpty
		res.Stage = StageDone
		logger.Info("No activities found")
		observability.RecordPipelineRun(res.Outcome.String())
		return res
	}

	res.Stage = StageSummarizing
	summary, err := c.summarizer.Summarize(ctx, activities)
	if err != nil {
		res.SummaryErr = err
		logger.Warn("Summarizer failed, returning activities without summary", "error", err)
	} else {
		res.Summary = summary
	}

	c.record(ctx, logger, userID, res.RunID, activities)

	res.Outcome = OutcomeSuccess
	res.Stage = StageDone
	logger.Info("Run complete", "activities", len(activities), "summarized", res.SummaryErr == nil)
	observability.RecordPipelineRun(res.Outcome.String())
	return res
}

// record persists the run. Each sink is optional and its failure is only logged.
func (c *Coordinator) record(ctx context.Context, logger *slog.Logger, userID, runID string, activities []activity.Summary) {
	if c.log != nil {
		if err := c.log.Append(ctx, userID, activities); err != nil {
			logger.Warn("Failed to append activity log", "error", err)
		}
	}
	if c.archiver != nil {
		if err := c.archiver.Archive(ctx, userID, runID, activities); err != nil {
			logger.Warn("Failed to archive run", "error", err)
		}
	}
	if c.publisher != nil {
		if err := c.publisher.PublishAnalyzed(ctx, userID, runID, len(activities)); err != nil {
			logger.Warn("Failed to publish analyzed event", "error", err)
		}
	}
}

// failureLevel picks the log level for a failed fetch: Info when the user
// only has to connect, Warn for transient upstream trouble, Error otherwise.
func failureLevel(err error) slog.Level {
	if errors.Is(err, apperrors.ErrNotConnected) {
		return slog.LevelInfo
	}
	if apperrors.IsTimeout(err) {
		return slog.LevelWarn
	}
	if status := httputil.StatusCode(err); status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return slog.LevelWarn
	}
	return slog.LevelError
}

// classify maps a fetch error to its outcome and the stage it happened in.
func classify(err error) (Outcome, Stage) {
	switch {
	case errors.Is(err, apperrors.ErrNotConnected):
		return OutcomeNotConnected, StageAuthorizing
	case errors.Is(err, apperrors.ErrRefreshFailed):
		return OutcomeTemporaryFailure, StageAuthorizing
	case errors.Is(err, apperrors.ErrUpstream):
		return OutcomeTemporaryFailure, StageListing
	default:
		return OutcomeTemporaryFailure, StageAuthorizing
	}
}
