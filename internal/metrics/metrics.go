// Package metrics holds the Prometheus collectors for the service.
//
// Collectors are registered on the default registry through promauto and
// exposed by Handler on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "typing_flair"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	})

	upstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_calls_total",
		Help:      "Calls to reddit and MonkeyType by operation and outcome",
	}, []string{"operation", "outcome"})

	botTokenLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bot_token_lookups_total",
		Help:      "Bot token lookups by result (hit, refreshed, unavailable)",
	}, []string{"result"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Completed reddit logins, split by whether the user was new",
	}, []string{"user"})
)

// ObserveRequest records one finished HTTP request.
func ObserveRequest(method, route, status string, seconds float64) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpLatency.WithLabelValues(method, route, status).Observe(seconds)
}

// InFlight tracks concurrently running requests; call the returned func when done.
func InFlight() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// Upstream counts a call to an external API. outcome is a short label such
// as "ok", "error", "invalid_key".
func Upstream(operation, outcome string) {
	upstreamCalls.WithLabelValues(operation, outcome).Inc()
}

// BotToken counts a bot token lookup.
func BotToken(result string) {
	botTokenLookups.WithLabelValues(result).Inc()
}

// Login counts a completed login.
func Login(newUser bool) {
	label := "returning"
	if newUser {
		label = "new"
	}
	logins.WithLabelValues(label).Inc()
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
