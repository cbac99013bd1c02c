package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pubsub"

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

type Counter interface {
	Inc()
	Add(float64)
}

type Gauge interface {
	Set(float64)
	Inc()
	Dec()
	Add(float64)
	Sub(float64)
}

// CounterVec is a labeled counter
type CounterVec interface {
	With(labels ...string) Counter
}

// GaugeVec is a labeled gauge
type GaugeVec interface {
	With(labels ...string) Gauge
}

type NoopStat struct{}

func (NoopStat) Inc()        {}
func (NoopStat) Dec()        {}
func (NoopStat) Add(float64) {}
func (NoopStat) Sub(float64) {}
func (NoopStat) Set(float64) {}

type noopCounterVec struct{}
type noopGaugeVec struct{}

func (noopCounterVec) With(labels ...string) Counter { return NoopStat{} }
func (noopGaugeVec) With(labels ...string) Gauge     { return NoopStat{} }

type prometheusCounterVec struct {
	vec *prometheus.CounterVec
}

func (p *prometheusCounterVec) With(labelValues ...string) Counter {
	return p.vec.WithLabelValues(labelValues...)
}

type prometheusGaugeVec struct {
	vec *prometheus.GaugeVec
}

func (p *prometheusGaugeVec) With(labelValues ...string) Gauge {
	return p.vec.WithLabelValues(labelValues...)
}

// Initialize creates a fresh registry labeled with nodeID and replaces the
// no-op metrics with real collectors. Metrics stay no-ops until it is called.
func Initialize(nodeID string) {
	mu.Lock()
	defer mu.Unlock()

	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	labels := prometheus.Labels{"node_id": nodeID}

	ClientsConnected = newGauge(labels, "clients_connected", "Clients currently registered")
	Subscriptions = newGaugeVec(labels, "subscriptions", "Active subscriptions by channel kind", "kind")
	PublishesTotal = newCounter(labels, "publishes_total", "Messages published")
	DeliveriesTotal = newCounter(labels, "deliveries_total", "Messages handed to clients")
	DroppedDeliveriesTotal = newCounter(labels, "dropped_deliveries_total", "Messages a client could not accept")
	RegistryErrorsTotal = newCounterVec(labels, "registry_errors_total", "Rejected registry operations", "op", "kind")
}

// Handler serves the metrics registry, or 404 when telemetry is disabled
func Handler() http.Handler {
	mu.RLock()
	defer mu.RUnlock()

	if registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Registry returns the active registry, nil when telemetry is disabled
func Registry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

func newCounter(labels prometheus.Labels, name, help string) Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	})
	registry.MustRegister(c)
	return c
}

func newGauge(labels prometheus.Labels, name, help string) Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	})
	registry.MustRegister(g)
	return g
}

func newCounterVec(labels prometheus.Labels, name, help string, labelNames ...string) CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, labelNames)
	registry.MustRegister(vec)
	return &prometheusCounterVec{vec: vec}
}

func newGaugeVec(labels prometheus.Labels, name, help string, labelNames ...string) GaugeVec {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, labelNames)
	registry.MustRegister(vec)
	return &prometheusGaugeVec{vec: vec}
}
