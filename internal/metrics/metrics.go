// Package metrics defines the Prometheus collectors the service exports on /metrics.
//
// Collectors live on a Metrics value registered against an explicit
// Registerer instead of the global default, so every test can build its own
// set without "duplicate metrics collector registration" panics.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Resolutions   *prometheus.CounterVec
	Nutrition     *prometheus.CounterVec
	Emails        *prometheus.CounterVec
	ImageCache    *prometheus.CounterVec
	RequestsTotal *prometheus.CounterVec
	ReqDuration   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "food_resolutions_total", Help: "Food searches by resolving tier"},
			[]string{"source"},
		),
		Nutrition: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "nutrition_requests_total", Help: "Calls to the nutrition API"},
			[]string{"operation", "outcome"},
		),
		Emails: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "emails_total", Help: "Account emails dispatched"},
			[]string{"kind", "outcome"},
		),
		ImageCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "image_cache_total", Help: "Image cache lookups"},
			[]string{"outcome"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
			[]string{"method", "status"},
		),
		ReqDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Request duration seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		gatherer: reg,
	}

	reg.MustRegister(m.Resolutions, m.Nutrition, m.Emails, m.ImageCache, m.RequestsTotal, m.ReqDuration)
	return m
}

func (m *Metrics) Resolution(source string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(source).Inc()
}

func (m *Metrics) NutritionCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.Nutrition.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) Email(kind, outcome string) {
	if m == nil {
		return
	}
	m.Emails.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ImageLookup(outcome string) {
	if m == nil {
		return
	}
	m.ImageCache.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.ReqDuration.WithLabelValues(method).Observe(seconds)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
