// Package metrics exposes Prometheus collectors for document compilation and
// gateway peer calls.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "burrow"

// Compilation outcomes.
const (
	ResultOK     = "ok"
	ResultCached = "cached"
	ResultError  = "error"
)

// Collector owns the registry and every metric the process exports.
type Collector struct {
	registry *prometheus.Registry

	compilations     *prometheus.CounterVec
	compileDuration  *prometheus.HistogramVec
	documentRouters  *prometheus.GaugeVec
	skippedResources *prometheus.CounterVec
	peerCalls        *prometheus.CounterVec
	peerCallDuration *prometheus.HistogramVec
	refreshRuns      *prometheus.CounterVec
	configReloads    *prometheus.CounterVec
}

// NewCollector registers all metrics on registry. A nil registry gets a
// fresh one with the Go and process collectors attached.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		compilations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "compilations_total",
			Help:      "Configuration renders by exit node and result.",
		}, []string{"exit_node", "result"}),
		compileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "compile_duration_seconds",
			Help:      "Time to read a snapshot and build a document.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"exit_node"}),
		documentRouters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "document_routers",
			Help:      "Routers in the last document rendered per exit node and protocol.",
		}, []string{"exit_node", "protocol"}),
		skippedResources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "skipped_resources_total",
			Help:      "Resource groups left out of a document.",
		}, []string{"exit_node"}),
		peerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "peer_calls_total",
			Help:      "Peer calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		peerCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "peer_call_duration_seconds",
			Help:      "Peer call latency including exit node lookup.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		refreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Scheduled pre-render runs by result.",
		}, []string{"result"}),
		configReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "reloads_total",
			Help:      "Config file reload attempts by result.",
		}, []string{"result"}),
	}

	registry.MustRegister(
		c.compilations,
		c.compileDuration,
		c.documentRouters,
		c.skippedResources,
		c.peerCalls,
		c.peerCallDuration,
		c.refreshRuns,
		c.configReloads,
	)
	return c
}

// Registry returns the registry the collector registered on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RecordCompilation records one render of an exit node's document.
func (c *Collector) RecordCompilation(exitNodeID int64, result string, elapsed time.Duration, skipped int) {
	node := strconv.FormatInt(exitNodeID, 10)
	c.compilations.WithLabelValues(node, result).Inc()
	if result == ResultCached {
		return
	}
	c.compileDuration.WithLabelValues(node).Observe(elapsed.Seconds())
	if skipped > 0 {
		c.skippedResources.WithLabelValues(node).Add(float64(skipped))
	}
}

// SetDocumentRouters publishes the router counts of the last document.
func (c *Collector) SetDocumentRouters(exitNodeID int64, httpRouters, tcpRouters, udpRouters int) {
	node := strconv.FormatInt(exitNodeID, 10)
	c.documentRouters.WithLabelValues(node, "http").Set(float64(httpRouters))
	c.documentRouters.WithLabelValues(node, "tcp").Set(float64(tcpRouters))
	c.documentRouters.WithLabelValues(node, "udp").Set(float64(udpRouters))
}

// ObservePeerCall records one gateway peer call. An empty kind means success.
// The signature matches gateway.CallObserver.
func (c *Collector) ObservePeerCall(op string, _ int64, kind string, elapsed time.Duration) {
	outcome := kind
	if outcome == "" {
		outcome = "ok"
	}
	c.peerCalls.WithLabelValues(op, outcome).Inc()
	c.peerCallDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordRefresh records one scheduled refresh run.
func (c *Collector) RecordRefresh(failed int) {
	if failed > 0 {
		c.refreshRuns.WithLabelValues(ResultError).Inc()
		return
	}
	c.refreshRuns.WithLabelValues(ResultOK).Inc()
}

// RecordConfigReload records one config file reload attempt.
func (c *Collector) RecordConfigReload(err error) {
	if err != nil {
		c.configReloads.WithLabelValues(ResultError).Inc()
		return
	}
	c.configReloads.WithLabelValues(ResultOK).Inc()
}
