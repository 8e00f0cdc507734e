// Package metrics collects and exposes Prometheus metrics for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector tracks submission outcomes and offline-queue activity.
type Collector struct {
	submissions      *prometheus.CounterVec
	tokenValidations *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	drainReplayed    prometheus.Counter
	drainFailed      prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendsync_submissions_total",
			Help: "Attendance submissions by outcome.",
		}, []string{"outcome"}),
		tokenValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendsync_token_validations_total",
			Help: "Token validations by result.",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attendsync_offline_queue_depth",
			Help: "Submissions currently held in the offline queue.",
		}),
		drainReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendsync_drain_replayed_total",
			Help: "Queued submissions replayed successfully (duplicates included).",
		}),
		drainFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendsync_drain_failed_total",
			Help: "Queued submissions that failed replay and stayed queued.",
		}),
	}
	reg.MustRegister(c.submissions, c.tokenValidations, c.queueDepth, c.drainReplayed, c.drainFailed)
	return c
}

// RecordSubmission counts one submission outcome.
func (c *Collector) RecordSubmission(outcome string) {
	c.submissions.WithLabelValues(outcome).Inc()
}

// RecordTokenValidation counts one validation result.
func (c *Collector) RecordTokenValidation(result string) {
	c.tokenValidations.WithLabelValues(result).Inc()
}

// SetQueueDepth records the offline queue depth.
func (c *Collector) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

// RecordDrain records one drain pass.
func (c *Collector) RecordDrain(replayed, failed int) {
	c.drainReplayed.Add(float64(replayed))
	c.drainFailed.Add(float64(failed))
}
