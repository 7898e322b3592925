package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics defines counters for patching and dispatch.
type Metrics interface {
	IncExecution(result string)
	IncPatchSite(status string)
	IncHandlerInvocation(kind string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncExecution(string)         {}
func (Noop) IncPatchSite(string)         {}
func (Noop) IncHandlerInvocation(string) {}

// Prom implements Metrics backed by Prometheus counters.
type Prom struct {
	executions *prometheus.CounterVec
	patchSites *prometheus.CounterVec
	handlers   *prometheus.CounterVec
	once       sync.Once
}

// NewProm creates the counters and registers them with reg. A nil reg
// registers with the default Prometheus registry.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	p := &Prom{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Execution requests handled by result",
		}, []string{"result"}),
		patchSites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patch_sites_total",
			Help:      "Injection sites processed by status",
		}, []string{"status"}),
		handlers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_invocations_total",
			Help:      "Event handler invocations by event kind",
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p.register(reg)
	return p
}

func (p *Prom) register(reg prometheus.Registerer) {
	p.once.Do(func() {
		reg.MustRegister(p.executions, p.patchSites, p.handlers)
	})
}

func (p *Prom) IncExecution(result string) {
	p.executions.WithLabelValues(result).Inc()
}

func (p *Prom) IncPatchSite(status string) {
	p.patchSites.WithLabelValues(status).Inc()
}

func (p *Prom) IncHandlerInvocation(kind string) {
	p.handlers.WithLabelValues(kind).Inc()
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving the metrics gathered by g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
