package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		jobsStartedTotal,
		jobsFinishedTotal,
		callbacksTotal,
		rateLimitDeniedTotal,
		jobsEvictedTotal,
	)
}

var (
	jobsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_started_total",
			Help: "Total number of pipeline jobs submitted, labeled by kind.",
		},
		[]string{"kind"},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_finished_total",
			Help: "Total number of pipeline jobs that reached a terminal state, labeled by kind and outcome.",
		},
		[]string{"kind", "outcome"}, // 'done', 'failed'
	)

	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_callbacks_total",
			Help: "Total number of status callbacks processed, labeled by job family and outcome.",
		},
		[]string{"family", "outcome"}, // 'ok', 'forbidden', 'conflict', 'malformed', 'side_effect_error'
	)

	rateLimitDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_rate_limit_denied_total",
			Help: "Total number of submissions denied by the rate limiter, labeled by kind.",
		},
		[]string{"kind"},
	)

	jobsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_evicted_total",
			Help: "Total number of stale jobs evicted by the TTL sweep.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncJobStarted(kind string) {
	jobsStartedTotal.WithLabelValues(norm(kind)).Inc()
}

func IncJobFinished(kind string, failed bool) {
	outcome := "done"
	if failed {
		outcome = "failed"
	}
	jobsFinishedTotal.WithLabelValues(norm(kind), outcome).Inc()
}

func IncCallback(family, outcome string) {
	callbacksTotal.WithLabelValues(norm(family), norm(outcome)).Inc()
}

func IncRateLimitDenied(kind string) {
	rateLimitDeniedTotal.WithLabelValues(norm(kind)).Inc()
}

func AddJobsEvicted(n int) {
	jobsEvictedTotal.Add(float64(n))
}
