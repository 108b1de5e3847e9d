// Package metrics exposes Prometheus metrics for activitygraph runs.
//
// A run is a short-lived batch job, so metrics are collected in a private
// registry and optionally pushed to a Pushgateway when the run finishes.
package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "activitygraph"

// Graph labels for the statements counter.
const (
	GraphData     = "data"
	GraphOntology = "ontology"
)

// Metrics holds the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	statements    *prometheus.CounterVec
	storeRequests *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastSuccess   prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.statements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "statements_total",
		Help:      "Statements built or parsed, by graph",
	}, []string{"graph"})
	m.storeRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "requests_total",
		Help:      "Graph store requests by operation and HTTP status",
	}, []string{"op", "code"})
	m.storeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "request_duration_seconds",
		Help:      "Graph store request latency by operation",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Pipeline runs by outcome",
	}, []string{"status"})
	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a pipeline run",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	m.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run",
	})

	m.Registry.MustRegister(m.statements, m.storeRequests, m.storeDuration, m.runs, m.runDuration, m.lastSuccess)
	return m
}

// AddStatements counts n statements for the given graph label.
func (m *Metrics) AddStatements(graph string, n int) {
	if m == nil {
		return
	}
	m.statements.WithLabelValues(graph).Add(float64(n))
}

// ObserveStoreRequest records one graph store request. A zero status means
// the request never got a response.
func (m *Metrics) ObserveStoreRequest(op string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.storeRequests.WithLabelValues(op, code).Inc()
	m.storeDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveRun records the outcome of a pipeline run.
func (m *Metrics) ObserveRun(err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	} else {
		m.lastSuccess.SetToCurrentTime()
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

// Push sends the registry to a Prometheus Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
