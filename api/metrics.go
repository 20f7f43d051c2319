package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors exported on /metrics. Each App owns its own
// registry so tests can build several Apps.
type Metrics struct {
	reg         *prometheus.Registry
	predictions *prometheus.CounterVec
	predictTime prometheus.Histogram
	requests    *prometheus.CounterVec
	ingested    *prometheus.CounterVec
}

func newMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farmalytica_predictions_total",
			Help: "Prediction requests by outcome.",
		}, []string{"outcome"}),
		predictTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "farmalytica_prediction_seconds",
			Help:    "Wall time of completed classifier runs.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15},
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farmalytica_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farmalytica_readings_ingested_total",
			Help: "Soil readings stored, by source.",
		}, []string{"source"}),
	}
	m.reg.MustRegister(m.predictions, m.predictTime, m.requests, m.ingested)
	return m
}

func (m *Metrics) observePrediction(outcome string, took time.Duration) {
	m.predictions.WithLabelValues(outcome).Inc()
	if took > 0 {
		m.predictTime.Observe(took.Seconds())
	}
}

func (m *Metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// instrument counts requests by matched chi route pattern.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.requests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
	})
}
