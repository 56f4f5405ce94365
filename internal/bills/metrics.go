package bills

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auto_bills"

// Outcomes recorded per message
const (
	OutcomeNotified = "notified"
	OutcomeNoData   = "no_data"
	OutcomeFailed   = "failed"
)

// Metrics holds the poll cycle instruments
type Metrics struct {
	cycles        *prometheus.CounterVec
	messages      *prometheus.CounterVec
	categories    *prometheus.CounterVec
	cycleDuration prometheus.Histogram
}

// NewMetrics registers the instruments on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles run, by result.",
		}, []string{"result"}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Unseen messages processed, by outcome.",
		}, []string{"outcome"}),
		categories: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_detected_total",
			Help:      "Bills notified, by category.",
		}, []string{"category"}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Wall time of a poll cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
}

func (m *Metrics) observeCycle(err error, seconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(seconds)
}

func (m *Metrics) observeMessage(report MessageReport) {
	m.messages.WithLabelValues(report.Outcome).Inc()
	if report.Outcome == OutcomeNotified && report.Result != nil {
		m.categories.WithLabelValues(string(report.Result.Category)).Inc()
	}
}
