// Package metrics holds the Prometheus collectors for the fetch lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch counts requests per channel. A nil *Fetch is valid and records nothing.
type Fetch struct {
	Requests   *prometheus.CounterVec
	Superseded *prometheus.CounterVec
	Errors     *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewFetch creates the collectors and registers them with reg when non-nil.
func NewFetch(reg prometheus.Registerer) *Fetch {
	m := &Fetch{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threadscope",
			Name:      "fetch_requests_total",
			Help:      "Transport calls issued, by channel.",
		}, []string{"channel"}),
		Superseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threadscope",
			Name:      "fetch_superseded_total",
			Help:      "Results discarded because a newer request owned the channel.",
		}, []string{"channel"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threadscope",
			Name:      "fetch_errors_total",
			Help:      "Published error states, by channel and kind.",
		}, []string{"channel", "kind"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "threadscope",
			Name:      "fetch_duration_seconds",
			Help:      "Transport call latency, by channel.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Superseded, m.Errors, m.Duration)
	}
	return m
}

func (m *Fetch) Request(channel string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(channel).Inc()
}

func (m *Fetch) Discard(channel string) {
	if m == nil {
		return
	}
	m.Superseded.WithLabelValues(channel).Inc()
}

func (m *Fetch) Error(channel, kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(channel, kind).Inc()
}

func (m *Fetch) Observe(channel string, d time.Duration) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(channel).Observe(d.Seconds())
}
