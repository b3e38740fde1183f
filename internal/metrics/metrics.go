package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "loginform"
)

var (
	loginDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

	// Login Metrics
	SubmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Count of login form submissions.",
	})

	LoginResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_results_total",
		Help:      "Count of resolved login requests by outcome.",
	}, []string{"outcome"})

	LoginRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "login_request_duration_seconds",
		Help:      "Time taken for the login service to answer.",
		Buckets:   loginDurationBuckets,
	}, []string{"outcome"})

	CookieWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cookie_writes_total",
		Help:      "Count of session cookies delivered to browsers.",
	})

	// Mount Metrics
	MountsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mounts_active",
		Help:      "Number of mounted login forms.",
	})

	MountsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mounts_total",
		Help:      "Count of mounted and unmounted login forms.",
	}, []string{"event"})
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
