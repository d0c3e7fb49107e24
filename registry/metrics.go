package registry

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts cache and backend activity.
type Metrics struct {
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	BackendCalls *prometheus.CounterVec // labels: backend (remote|dataset), outcome (ok|error)
	Degraded     prometheus.Counter
}

// NewMetrics builds the collectors and registers them on reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "masukame", Subsystem: "registry", Name: "cache_hits_total",
			Help: "Registry queries answered from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "masukame", Subsystem: "registry", Name: "cache_misses_total",
			Help: "Registry queries that went to a backend.",
		}),
		BackendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masukame", Subsystem: "registry", Name: "backend_calls_total",
			Help: "Backend accesses by backend and outcome.",
		}, []string{"backend", "outcome"}),
		Degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "masukame", Subsystem: "registry", Name: "degraded_answers_total",
			Help: "Remote failures answered from the fallback dataset.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.CacheHits, m.CacheMisses, m.BackendCalls, m.Degraded)
	}
	return m
}

func (m *Metrics) backend(name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.BackendCalls.WithLabelValues(name, outcome).Inc()
}
