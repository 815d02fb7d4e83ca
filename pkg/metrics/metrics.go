// Package metrics exposes the agent's Prometheus collectors and an optional
// scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReputationRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_reputation_refreshes_total",
		Help: "Reputation list refresh attempts by outcome",
	}, []string{"outcome"})

	ReputationSetSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sentinel_reputation_set_size",
		Help: "Number of addresses in the current reputation snapshot",
	}, []string{"list"})

	ReputationLastRefresh = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_reputation_last_refresh_timestamp",
		Help: "Unix time of the last successful reputation refresh",
	})

	TransactionsEvaluated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_transactions_evaluated_total",
		Help: "Total transactions run through the decision engine",
	})

	Verdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_verdicts_total",
		Help: "Verdicts by outcome",
	}, []string{"outcome"})

	ConfirmationsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_confirmations_total",
		Help: "Confirmation submissions by outcome",
	}, []string{"outcome"})

	NarrativeFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_narrative_fallbacks_total",
		Help: "Advisory narrative calls that degraded to the fixed fallback",
	})
)

// Register installs all collectors on the given registry. Call once at
// startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ReputationRefreshes,
		ReputationSetSize,
		ReputationLastRefresh,
		TransactionsEvaluated,
		Verdicts,
		ConfirmationsSubmitted,
		NarrativeFallbacks,
	)
}

// Serve starts a blocking /metrics listener on addr using the default
// gatherer. Intended to run in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
