package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fleet metrics
	FleetCapacity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_fleet_capacity",
			Help: "Capacity of usable fleet nodes by kind (total, used)",
		},
		[]string{"kind"},
	)

	FleetNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_fleet_nodes",
			Help: "Number of nodes in the last fleet snapshot",
		},
	)

	RunningReplicas = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_running_replicas",
			Help: "Replicas currently running across the fleet by operation",
		},
		[]string{"operation"},
	)

	// Scheduler metrics
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_ticks_total",
			Help: "Total number of scheduler ticks by outcome (executed, idle, unavailable)",
		},
		[]string{"outcome"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_tick_duration_seconds",
			Help:    "Time taken by one scheduler tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ActionsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_actions_executed_total",
			Help: "Total number of executed actions by action and status",
		},
		[]string{"action", "status"},
	)

	// Task metrics
	ReplicasLaunched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_replicas_launched_total",
			Help: "Total number of replicas launched by operation",
		},
		[]string{"operation"},
	)

	LaunchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_launch_failures_total",
			Help: "Total number of failed launches by operation",
		},
		[]string{"operation"},
	)

	// Supervisor metrics
	ModuleLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_module_launches_total",
			Help: "Total number of supervised module launches by module",
		},
		[]string{"module"},
	)

	ModuleTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_module_timeouts_total",
			Help: "Total number of modules terminated after exceeding their timeout",
		},
		[]string{"module"},
	)

	ModuleRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_module_run_duration_seconds",
			Help:    "Time a supervised module ran before exiting or being terminated",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"module"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(FleetCapacity)
	prometheus.MustRegister(FleetNodes)
	prometheus.MustRegister(RunningReplicas)
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(ActionsExecuted)
	prometheus.MustRegister(ReplicasLaunched)
	prometheus.MustRegister(LaunchFailures)
	prometheus.MustRegister(ModuleLaunches)
	prometheus.MustRegister(ModuleTimeouts)
	prometheus.MustRegister(ModuleRunDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for histogram observations
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds on a histogram
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed seconds on a labelled histogram
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
