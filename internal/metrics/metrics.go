// Package metrics exposes Prometheus collectors for mining runs, NCBI
// traffic and the HTTP API. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

const namespace = "prisma_miner"

// Collector holds every metric on a private registry.
type Collector struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec   // status: success, error
	runDuration     prometheus.Histogram     // whole pipeline
	recordsTotal    *prometheus.CounterVec   // source, decision
	qualityScores   prometheus.Histogram     // total score per assessed record
	identifiedTotal *prometheus.CounterVec   // database
	ncbiRequests    *prometheus.CounterVec   // endpoint, db, status
	ncbiDuration    *prometheus.HistogramVec // endpoint
	breakerState    *prometheus.GaugeVec     // db; 0 closed, 1 half-open, 2 open
	httpRequests    *prometheus.CounterVec   // method, route, status
	httpDuration    *prometheus.HistogramVec // method, route
}

// New creates a collector and registers its metrics, plus the Go runtime
// and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of mining runs by outcome",
		}, []string{"status"}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Mining run duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Screened records by source and decision",
		}, []string{"source", "decision"}),

		qualityScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quality",
			Name:      "score",
			Help:      "Distribution of record quality scores",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),

		identifiedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "identified_total",
			Help:      "Records identified per database",
		}, []string{"database"}),

		ncbiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ncbi",
			Name:      "requests_total",
			Help:      "E-utilities requests by endpoint, database and HTTP status",
		}, []string{"endpoint", "db", "status"}),

		ncbiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ncbi",
			Name:      "request_duration_seconds",
			Help:      "E-utilities request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ncbi",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per database (0 closed, 1 half-open, 2 open)",
		}, []string{"db"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP API requests by method, route and status",
		}, []string{"method", "route", "status"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP API latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		c.runsTotal, c.runDuration, c.recordsTotal, c.qualityScores, c.identifiedTotal,
		c.ncbiRequests, c.ncbiDuration, c.breakerState, c.httpRequests, c.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRun records one finished run.
func (c *Collector) ObserveRun(err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.Observe(elapsed.Seconds())
}

// ObserveIdentified adds n identified records for database.
func (c *Collector) ObserveIdentified(database string, n int) {
	if c == nil {
		return
	}
	c.identifiedTotal.WithLabelValues(database).Add(float64(n))
}

// ObserveDecision counts one screening decision.
func (c *Collector) ObserveDecision(source, decision string) {
	if c == nil {
		return
	}
	c.recordsTotal.WithLabelValues(source, decision).Inc()
}

// ObserveQuality records one assessed score.
func (c *Collector) ObserveQuality(score float64) {
	if c == nil {
		return
	}
	c.qualityScores.Observe(score)
}

// ObserveNCBIRequest matches ncbi.RequestObserver.
func (c *Collector) ObserveNCBIRequest(endpoint, db string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.ncbiRequests.WithLabelValues(endpoint, db, label).Inc()
	c.ncbiDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveBreaker matches ncbi.StateObserver.
func (c *Collector) ObserveBreaker(db string, _, to gobreaker.State) {
	if c == nil {
		return
	}
	var v float64
	switch to {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	c.breakerState.WithLabelValues(db).Set(v)
}

// ObserveHTTP records one API request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
