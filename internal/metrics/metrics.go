// Package metrics exposes graph and HTTP activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazypower/muza/internal/engine"
)

// Namespace prefixes every metric name.
const Namespace = "muza"

// Collector holds the Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	Learned      prometheus.Counter
	Inputs       *prometheus.CounterVec
	Evolves      prometheus.Counter
	Pruned       prometheus.Counter
	Chats        *prometheus.CounterVec
	Nodes        prometheus.Gauge
	Synapses     prometheus.Gauge
	Crystallized prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Learned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "learn_total",
			Help:      "Texts learned directly.",
		}),
		Inputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "input_total",
			Help:      "Conversational inputs processed, by source.",
		}, []string{"source"}),
		Evolves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "evolve_total",
			Help:      "Decay passes run.",
		}),
		Pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pruned_nodes_total",
			Help:      "Nodes removed by decay.",
		}),
		Chats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chat_total",
			Help:      "Chat replies, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		Nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "nodes",
			Help:      "Nodes in the graph.",
		}),
		Synapses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "synapses",
			Help:      "Directed associations in the graph.",
		}),
		Crystallized: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "crystallized",
			Help:      "Crystallized nodes in the graph.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		c.Learned, c.Inputs, c.Evolves, c.Pruned, c.Chats,
		c.Nodes, c.Synapses, c.Crystallized,
		c.HTTPRequests, c.HTTPDuration,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) ObserveLearn() {
	c.Learned.Inc()
}

func (c *Collector) ObserveInput(source engine.Source) {
	c.Inputs.WithLabelValues(string(source)).Inc()
}

func (c *Collector) ObserveEvolve(r engine.EvolveReport) {
	c.Evolves.Inc()
	c.Pruned.Add(float64(r.Pruned))
}

func (c *Collector) ObserveChat(provider, outcome string) {
	c.Chats.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) ObserveGraph(s engine.Stats) {
	c.Nodes.Set(float64(s.Nodes))
	c.Synapses.Set(float64(s.Synapses))
	c.Crystallized.Set(float64(s.Crystallized))
}

var _ engine.Recorder = (*Collector)(nil)
