package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artmorph_generations_total",
			Help: "Total generation requests by tier.",
		},
		[]string{"tier"},
	)

	ProviderAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artmorph_provider_attempts_total",
			Help: "Provider attempts by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	FallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "artmorph_mock_fallbacks_total",
			Help: "Generations that fell back to the mock artifact.",
		},
	)

	ChunksRelayedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "artmorph_chunks_relayed_total",
			Help: "Stream chunks relayed to callers.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		GenerationsTotal,
		ProviderAttemptsTotal,
		FallbacksTotal,
		ChunksRelayedTotal,
	)
}
