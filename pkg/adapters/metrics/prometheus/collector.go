package prometheus

import (
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	hubsCompleted     *prometheus.CounterVec
	retreats          *prometheus.CounterVec
	retries           *prometheus.CounterVec
	activeAgents      prometheus.Gauge
	cycleDuration     *prometheus.HistogramVec
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
}

// NewCollector creates a Prometheus metrics collector registered with reg.
// A nil reg uses the default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcycle_operations_total",
				Help: "Total number of operations completed by the worker pool",
			},
			[]string{"kind", "status"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubcycle_operation_duration_seconds",
				Help:    "Operation duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		hubsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcycle_hubs_completed_total",
				Help: "Total number of hubs completed",
			},
			[]string{"agent"},
		),
		retreats: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcycle_retreats_total",
				Help: "Total number of interlock retreats to staging",
			},
			[]string{"agent"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubcycle_retries_total",
				Help: "Total number of in-place retries",
			},
			[]string{"agent"},
		),
		activeAgents: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcycle_active_agents",
				Help: "Number of agents still working through their hub sequence",
			},
		),
		cycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubcycle_cycle_duration_seconds",
				Help:    "Time from cycle start to an agent finishing its sequence",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"agent"},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcycle_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcycle_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubcycle_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordOperation records a finished operation
func (c *Collector) RecordOperation(kind domain.OperationKind, status domain.Status, duration time.Duration) {
	c.operations.WithLabelValues(string(kind), status.String()).Inc()
	c.operationDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

// RecordHubCompleted increments the agent's completed hubs
func (c *Collector) RecordHubCompleted(agent string) {
	c.hubsCompleted.WithLabelValues(agent).Inc()
}

// RecordRetreat increments the agent's retreats
func (c *Collector) RecordRetreat(agent string) {
	c.retreats.WithLabelValues(agent).Inc()
}

// RecordRetry increments the agent's in-place retries
func (c *Collector) RecordRetry(agent string) {
	c.retries.WithLabelValues(agent).Inc()
}

// SetActiveAgents sets the number of active agents
func (c *Collector) SetActiveAgents(count int) {
	c.activeAgents.Set(float64(count))
}

// ObserveCycleDuration records how long the agent took to finish its sequence
func (c *Collector) ObserveCycleDuration(agent string, duration time.Duration) {
	c.cycleDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}
