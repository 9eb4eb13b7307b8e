package cart

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts remote sync outcomes.
type Metrics struct {
	jobs    *prometheus.CounterVec
	latency prometheus.Histogram
	pulls   *prometheus.CounterVec
}

// NewMetrics builds the sync metrics and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cart",
			Subsystem: "sync",
			Name:      "jobs_total",
			Help:      "Remote cart sync jobs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cart",
			Subsystem: "sync",
			Name:      "remote_duration_seconds",
			Help:      "Time spent writing a cart to the remote store.",
			Buckets:   prometheus.DefBuckets,
		}),
		pulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cart",
			Subsystem: "sync",
			Name:      "pulls_total",
			Help:      "Remote cart pulls by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.jobs, m.latency, m.pulls)
	}
	return m
}
