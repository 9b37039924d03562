package scoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aristath/creditrisk/internal/domain"
)

// Metrics holds the scoring collectors. A nil *Metrics records nothing.
type Metrics struct {
	scored   *prometheus.CounterVec
	failures *prometheus.CounterVec
	unseen   *prometheus.CounterVec
	pd       prometheus.Histogram
	latency  prometheus.Histogram
	swaps    prometheus.Counter
}

// NewMetrics registers the scoring collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		scored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "creditrisk_applicants_scored_total",
			Help: "Total number of applicants scored, by risk tier",
		}, []string{"tier"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "creditrisk_scoring_failures_total",
			Help: "Total number of scoring requests that failed, by reason",
		}, []string{"reason"}),
		unseen: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "creditrisk_unseen_categories_total",
			Help: "Total number of categorical values that fell back to the unknown slot, by field",
		}, []string{"field"}),
		pd: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditrisk_calibrated_pd",
			Help:    "Distribution of calibrated probabilities of default",
			Buckets: prometheus.LinearBuckets(0.05, 0.05, 19),
		}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditrisk_scoring_duration_seconds",
			Help:    "Time spent scoring a single applicant",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
		}),
		swaps: factory.NewCounter(prometheus.CounterOpts{
			Name: "creditrisk_model_swaps_total",
			Help: "Total number of times the serving model was replaced",
		}),
	}
}

func (m *Metrics) observeScore(tier domain.RiskTier, pd float64, unseen []string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.scored.WithLabelValues(string(tier)).Inc()
	m.pd.Observe(pd)
	m.latency.Observe(elapsed.Seconds())
	for _, field := range unseen {
		m.unseen.WithLabelValues(field).Inc()
	}
}

func (m *Metrics) observeFailure(reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeSwap() {
	if m == nil {
		return
	}
	m.swaps.Inc()
}
