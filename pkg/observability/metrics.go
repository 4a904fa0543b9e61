package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	tokenRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravabot",
		Subsystem: "oauth",
		Name:      "token_refresh_total",
		Help:      "Provider token refresh calls by result.",
	}, []string{"result"})
	splitResolutionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravabot",
		Subsystem: "activities",
		Name:      "split_resolution_total",
		Help:      "Per-activity split resolutions by source (native, laps, unavailable).",
	}, []string{"source"})
	pipelineRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stravabot",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline runs by outcome.",
	}, []string{"outcome"})
	upstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stravabot",
		Subsystem: "strava",
		Name:      "request_duration_seconds",
		Help:      "Latency of Strava API calls by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})
)

func init() {
	prometheus.MustRegister(tokenRefreshTotal, splitResolutionTotal, pipelineRunsTotal, upstreamDuration)
}

// RecordTokenRefresh counts a refresh attempt.
func RecordTokenRefresh(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	tokenRefreshTotal.WithLabelValues(result).Inc()
}

// RecordSplitResolution counts how an activity's splits were resolved.
func RecordSplitResolution(source string) {
	splitResolutionTotal.WithLabelValues(source).Inc()
}

// RecordPipelineRun counts a finished pipeline run.
func RecordPipelineRun(outcome string) {
	pipelineRunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records the latency of one Strava call.
func ObserveUpstream(operation, status string, started time.Time) {
	upstreamDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}
