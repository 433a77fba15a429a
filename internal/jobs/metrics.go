// Package jobmetrics instruments the asynq handlers that consume inventory and
// sales events.
package jobmetrics

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Handler outcomes recorded on odyssey_warehouse_jobs_total.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// Event handlers are expected to finish in milliseconds; the tail buckets
// catch a slow ledger scan.
var durationBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

// Metrics holds the collectors shared by every warehouse job handler. Series
// are keyed by the task domain (the part of the task type before the colon)
// and the full task type.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer, or once on the default
// registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker times one handler invocation.
type Tracker struct {
	metrics *Metrics
	domain  string
	task    string
	start   time.Time
}

// Track starts timing a run of taskType. A nil Metrics yields a tracker that
// records nothing.
func (m *Metrics) Track(taskType string) *Tracker {
	domain, _, _ := strings.Cut(taskType, ":")
	return &Tracker{metrics: m, domain: domain, task: taskType, start: time.Now()}
}

// End records the outcome of the run and returns err unchanged. Payloads the
// handler rejected with asynq.SkipRetry count as discarded, not failed, since
// asynq archives them instead of retrying.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.task == "" {
		return err
	}
	outcome := Outcome(err)
	if outcome == OutcomeFailed {
		t.metrics.failures.WithLabelValues(t.domain, t.task).Inc()
	}
	t.metrics.runs.WithLabelValues(t.domain, t.task, outcome).Inc()
	t.metrics.duration.WithLabelValues(t.domain, t.task).Observe(time.Since(t.start).Seconds())
	return err
}

// Outcome classifies a handler result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, asynq.SkipRetry):
		return OutcomeDiscarded
	default:
		return OutcomeFailed
	}
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_warehouse_jobs_total",
		Help: "Inventory and sales event tasks handled, by outcome (ok, failed, discarded).",
	}, []string{"domain", "task", "outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_warehouse_job_failures_total",
		Help: "Event task runs that failed and will be retried by asynq.",
	}, []string{"domain", "task"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_warehouse_job_duration_seconds",
		Help:    "Time spent handling one inventory or sales event task.",
		Buckets: durationBuckets,
	}, []string{"domain", "task"})
	registerer.MustRegister(runs, failures, duration)
	return &Metrics{runs: runs, failures: failures, duration: duration}
}
