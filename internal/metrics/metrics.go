// Package metrics registers the Prometheus instruments for the AI core and
// exposes the scrape handler mounted by main.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ModelInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deskmind_model_invocations_total",
		Help: "Model invocations by model, operation and outcome.",
	}, []string{"model", "operation", "status"})

	BlockedCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deskmind_blocked_calls_total",
		Help: "Calls blocked by the cost governor, by reason.",
	}, []string{"reason"})

	TokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deskmind_tokens_total",
		Help: "Tokens recorded in the usage ledger.",
	}, []string{"model", "direction"})

	SpendUSD = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deskmind_spend_usd_total",
		Help: "Estimated spend recorded in the usage ledger, in USD.",
	}, []string{"model"})

	MiningRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deskmind_mining_runs_total",
		Help: "Knowledge mining runs by outcome.",
	}, []string{"status"})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
