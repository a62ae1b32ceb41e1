package ensemble

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the orchestration pipeline. Exposing them over
// HTTP is the embedding service's concern; the library only observes.
var (
	processDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ensemble_process_duration_seconds",
			Help:    "Wall-clock duration of orchestrated analysis calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"strategy"},
	)

	providerInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensemble_provider_invocations_total",
			Help: "Total provider invocations by kind and outcome",
		},
		[]string{"provider", "outcome"},
	)

	providerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensemble_provider_failures_total",
			Help: "Provider call failures by kind and reason",
		},
		[]string{"provider", "reason"},
	)
)

// observeInvocation records one provider call outcome.
func observeInvocation(kind ProviderKind, err error) {
	if err == nil {
		providerInvocations.WithLabelValues(kind.String(), "success").Inc()
		return
	}
	providerInvocations.WithLabelValues(kind.String(), "failure").Inc()

	reason := string(FailureUnavailable)
	if pe, ok := AsProviderError(err); ok {
		reason = string(pe.Reason)
	}
	providerFailures.WithLabelValues(kind.String(), reason).Inc()
}
