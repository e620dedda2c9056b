package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coinsignal"

var (
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Requests issued to the market data provider by endpoint and status code.",
	}, []string{"endpoint", "code"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Result cache lookups by outcome (hit, stale, miss).",
	}, []string{"result"})

	pipelineAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_attempts_total",
		Help:      "Fetch-and-assemble attempts started by the retry controller.",
	})

	pipelineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_outcomes_total",
		Help:      "Terminal retry controller states.",
	}, []string{"state", "fallback"})

	mcpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mcp_requests_total",
		Help:      "MCP requests by kind (tool, resource, method), target and outcome.",
	}, []string{"kind", "target", "outcome"})

	assetsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assets_skipped_total",
		Help:      "Assets dropped from a pipeline pass by reason.",
	}, []string{"reason"})
)

// ObserveUpstream records one provider response. code 0 means the request never
// got a response.
func ObserveUpstream(endpoint string, code int) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	upstreamRequests.WithLabelValues(endpoint, label).Inc()
}

func ObserveCache(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

func ObserveAttempt() {
	pipelineAttempts.Inc()
}

func ObserveOutcome(state string, fallback bool) {
	pipelineOutcomes.WithLabelValues(state, strconv.FormatBool(fallback)).Inc()
}

func ObserveMCPRequest(kind, target, outcome string) {
	mcpRequests.WithLabelValues(kind, target, outcome).Inc()
}

func ObserveSkippedAsset(reason string) {
	assetsSkipped.WithLabelValues(reason).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
