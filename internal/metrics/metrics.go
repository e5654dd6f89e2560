package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments exported by the daemon.
type Metrics struct {
	CapturesSubmitted *prometheus.CounterVec
	Uploads           *prometheus.CounterVec
	UploadLatency     prometheus.Histogram
	RetryPasses       *prometheus.CounterVec
	QueuePending      prometheus.Gauge
	Online            prometheus.Gauge
}

// New registers all instruments with reg. A dedicated registry keeps tests
// isolated from the global default.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CapturesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkproof",
			Name:      "captures_submitted_total",
			Help:      "Captures submitted to the queue manager, by outcome.",
		}, []string{"outcome"}),

		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkproof",
			Name:      "uploads_total",
			Help:      "Upload attempts, by result.",
		}, []string{"result"}),

		UploadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "checkproof",
			Name:      "upload_duration_seconds",
			Help:      "Time spent on one upload attempt.",
			Buckets:   prometheus.DefBuckets,
		}),

		RetryPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkproof",
			Name:      "retry_passes_total",
			Help:      "Retry passes, by result (completed or the skip reason).",
		}, []string{"result"}),

		QueuePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "checkproof",
			Name:      "queue_pending",
			Help:      "Captures waiting in the offline queue.",
		}),

		Online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "checkproof",
			Name:      "online",
			Help:      "1 when the backend is considered reachable.",
		}),
	}

	reg.MustRegister(
		m.CapturesSubmitted,
		m.Uploads,
		m.UploadLatency,
		m.RetryPasses,
		m.QueuePending,
		m.Online,
	)
	return m
}

// Hooks are the observation callbacks the queue manager calls. A nil
// *Metrics yields no-op hooks.
type Hooks struct {
	OnSubmit    func(outcome string)
	OnUpload    func(ok bool, latency time.Duration)
	OnRetryPass func(result string)
	OnPending   func(count int)
	OnOnline    func(online bool)
}

// ManagerHooks returns callbacks that record into m.
func (m *Metrics) ManagerHooks() Hooks {
	if m == nil {
		return Hooks{}
	}
	return Hooks{
		OnSubmit: func(outcome string) {
			m.CapturesSubmitted.WithLabelValues(outcome).Inc()
		},
		OnUpload: func(ok bool, latency time.Duration) {
			result := "success"
			if !ok {
				result = "failure"
			}
			m.Uploads.WithLabelValues(result).Inc()
			m.UploadLatency.Observe(latency.Seconds())
		},
		OnRetryPass: func(result string) {
			m.RetryPasses.WithLabelValues(result).Inc()
		},
		OnPending: func(count int) {
			m.QueuePending.Set(float64(count))
		},
		OnOnline: func(online bool) {
			if online {
				m.Online.Set(1)
				return
			}
			m.Online.Set(0)
		},
	}
}
