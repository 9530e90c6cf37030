package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module"
)

var _ module.LocalnetMetrics = (*LocalnetCollector)(nil)

// LocalnetCollector turns lifecycle events into orchestrator metrics.
type LocalnetCollector struct {
	runState     *prometheus.GaugeVec
	launches     *prometheus.CounterVec
	healthWait   *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	stops        *prometheus.CounterVec
	nodesHealthy *prometheus.GaugeVec
}

// NewLocalnetCollector registers the collectors with the given registerer.
func NewLocalnetCollector(registerer prometheus.Registerer) *LocalnetCollector {
	factory := promauto.With(registerer)
	return &LocalnetCollector{
		runState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceLocalnet,
			Subsystem: subsystemRun,
			Name:      "state",
			Help:      "current lifecycle state of the run, 1 for the active state",
		}, []string{LabelState}),
		launches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceLocalnet,
			Subsystem: subsystemNode,
			Name:      "launches_total",
			Help:      "number of node processes launched",
		}, []string{LabelRole}),
		healthWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceLocalnet,
			Subsystem: subsystemNode,
			Name:      "health_wait_seconds",
			Help:      "time from launch until a node reported healthy or failed",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{LabelRole, LabelOutcome}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceLocalnet,
			Subsystem: subsystemNode,
			Name:      "failures_total",
			Help:      "number of nodes that failed to start or exited unexpectedly",
		}, []string{LabelRole}),
		stops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceLocalnet,
			Subsystem: subsystemNode,
			Name:      "stops_total",
			Help:      "number of node stops by result",
		}, []string{LabelRole, LabelResult}),
		nodesHealthy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceLocalnet,
			Subsystem: subsystemNode,
			Name:      "healthy",
			Help:      "whether a node is currently healthy",
		}, []string{LabelNode, LabelRole}),
	}
}

// OnEvent records a lifecycle event.
func (c *LocalnetCollector) OnEvent(event localnet.Event) {
	if event.Kind == localnet.EventRunState {
		c.runState.Reset()
		c.runState.WithLabelValues(string(event.State)).Set(1)
		return
	}

	role := event.Role.String()
	switch event.Kind {
	case localnet.EventLaunched:
		c.launches.WithLabelValues(role).Inc()
	case localnet.EventHealthy:
		c.healthWait.WithLabelValues(role, string(localnet.OutcomeHealthy)).Observe(event.Duration.Seconds())
		c.nodesHealthy.WithLabelValues(event.Node.String(), role).Set(1)
	case localnet.EventUnhealthy:
		c.healthWait.WithLabelValues(role, string(localnet.OutcomeUnhealthy)).Observe(event.Duration.Seconds())
		c.nodesHealthy.WithLabelValues(event.Node.String(), role).Set(0)
	case localnet.EventFailed:
		c.failures.WithLabelValues(role).Inc()
		c.nodesHealthy.WithLabelValues(event.Node.String(), role).Set(0)
	case localnet.EventStopped:
		c.stops.WithLabelValues(role, event.Detail).Inc()
		c.nodesHealthy.WithLabelValues(event.Node.String(), role).Set(0)
	}
}
