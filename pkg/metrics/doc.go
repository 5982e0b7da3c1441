/*
Package metrics provides Prometheus metrics and health endpoints for Burrow.

All metrics are package variables registered with the default Prometheus
registry in init, so any package can record them without wiring. Server
exposes them next to the health probes.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  Scheduler ──► TicksTotal, TickDuration, ActionsExecuted   │
	│  Task      ──► ReplicasLaunched, LaunchFailures            │
	│  Supervisor──► ModuleLaunches, ModuleTimeouts,             │
	│                ModuleRunDuration                           │
	│  Collector ──► FleetNodes, FleetCapacity, RunningReplicas  │
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Server                         │          │
	│  │  /metrics  Prometheus exposition            │          │
	│  │  /health   all components                   │          │
	│  │  /ready    critical components              │          │
	│  │  /live     process is up                    │          │
	│  └────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────────┘

# Metrics

Fleet:
  - burrow_fleet_nodes: nodes in the last snapshot
  - burrow_fleet_capacity{kind}: total and used capacity of usable nodes
  - burrow_running_replicas{operation}: replicas running across the fleet

Scheduler:
  - burrow_ticks_total{outcome}: executed, idle or unavailable
  - burrow_tick_duration_seconds: time spent in one tick
  - burrow_actions_executed_total{action,status}: SUCCESS or FAILURE

Tasks:
  - burrow_replicas_launched_total{operation}
  - burrow_launch_failures_total{operation}

Supervisor:
  - burrow_module_launches_total{module}
  - burrow_module_timeouts_total{module}
  - burrow_module_run_duration_seconds{module}

# Health

Components report through RegisterComponent and UpdateComponent. The
driver, scheduler and supervisor components are critical: /ready returns
503 while any of them is unhealthy. The collector marks the driver
unhealthy when a fleet sample fails.

# Usage

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TickDuration)

	metrics.ReplicasLaunched.WithLabelValues("weaken").Add(12)

	srv := metrics.NewServer(cfg.MetricsAddr)
	go srv.Start(ctx)
*/
package metrics
