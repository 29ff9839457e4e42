package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for location resolution, provider refreshes and
// evaluations. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Provider call latencies by provider and category
	ProviderLatency *prometheus.HistogramVec

	// Provider call results by provider, category and result
	ProviderCalls *prometheus.CounterVec

	// Per-category refresh outcomes
	RefreshOutcomes *prometheus.CounterVec

	// Location resolutions by method and whether a location was created
	Resolutions *prometheus.CounterVec

	// Evaluation status after each run
	EvaluationStatus *prometheus.CounterVec
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in
// binaries and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "siteeval_provider_call_duration_seconds",
			Help:    "Duration of external provider lookups",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider", "category"}),

		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "siteeval_provider_calls_total",
			Help: "Provider lookups by result (ok, no_data or an error category)",
		}, []string{"provider", "category", "result"}),

		RefreshOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "siteeval_refresh_outcomes_total",
			Help: "Per-category refresh outcomes",
		}, []string{"category", "outcome"}),

		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "siteeval_location_resolutions_total",
			Help: "Location resolutions by method and result (existing, created)",
		}, []string{"method", "result"}),

		EvaluationStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "siteeval_evaluation_status_total",
			Help: "Evaluation status after each run by purpose",
		}, []string{"status", "purpose"}),
	}
}

// ObserveProviderCall records the duration and result of one lookup.
func (m *Metrics) ObserveProviderCall(provider, category, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderLatency.WithLabelValues(provider, category).Observe(d.Seconds())
	m.ProviderCalls.WithLabelValues(provider, category, result).Inc()
}

// IncrementRefreshOutcome records how one category was handled by a refresh.
func (m *Metrics) IncrementRefreshOutcome(category, outcome string) {
	if m != nil {
		m.RefreshOutcomes.WithLabelValues(category, outcome).Inc()
	}
}

// IncrementResolution records a resolver result.
func (m *Metrics) IncrementResolution(method string, created bool) {
	if m == nil {
		return
	}
	result := "existing"
	if created {
		result = "created"
	}
	m.Resolutions.WithLabelValues(method, result).Inc()
}

// IncrementEvaluationStatus records the status an evaluation run ended in.
func (m *Metrics) IncrementEvaluationStatus(status, purpose string) {
	if m != nil {
		m.EvaluationStatus.WithLabelValues(status, purpose).Inc()
	}
}
