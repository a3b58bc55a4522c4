// Package metrics holds the Prometheus collectors for route resolution and
// HTTP traffic.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the service's Prometheus metrics. It implements
// routing.Recorder.
type Collector struct {
	gatherer prometheus.Gatherer

	RouteResolutions *prometheus.CounterVec
	RouteDurations   *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDurations    *prometheus.HistogramVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice against the same registry
// returns the already registered vectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	resolutions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "route_resolutions_total",
		Help: "Route resolutions, labeled by provider profile and outcome.",
	}, []string{"profile", "outcome"}), "route_resolutions_total")
	if err != nil {
		return nil, err
	}

	routeDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "route_resolution_duration_seconds",
		Help:    "Route resolution latency in seconds, including the provider call.",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"profile", "outcome"}), "route_resolution_duration_seconds")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Handled HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "route", "code"}), "http_requests_total")
	if err != nil {
		return nil, err
	}

	httpDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method", "route"}), "http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		RouteResolutions: resolutions,
		RouteDurations:   routeDurations,
		HTTPRequests:     requests,
		HTTPDurations:    httpDurations,
	}, nil
}

// ObserveResolution records one route resolution. An empty profile (transport
// types that never reach the provider) is labeled "none".
func (c *Collector) ObserveResolution(profile, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	if profile == "" {
		profile = "none"
	}
	c.RouteResolutions.WithLabelValues(profile, outcome).Inc()
	c.RouteDurations.WithLabelValues(profile, outcome).Observe(elapsed.Seconds())
}

// Middleware records request counts and durations. Requests that matched no
// route are labeled "unmatched" to keep label cardinality bounded.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		if c == nil {
			return
		}
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		code := strconv.Itoa(ctx.Writer.Status())

		c.HTTPRequests.WithLabelValues(method, route, code).Inc()
		c.HTTPDurations.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("metrics: collector %s already registered with incompatible type", name)
		}
		return nil, fmt.Errorf("metrics: register %s: %w", name, err)
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("metrics: collector %s already registered with incompatible type", name)
		}
		return nil, fmt.Errorf("metrics: register %s: %w", name, err)
	}
	return vec, nil
}
