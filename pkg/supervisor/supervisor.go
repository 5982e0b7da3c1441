// Package supervisor keeps the registered modules running on the local host,
// one instance each, and kills instances that overrun their timeout.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/fleet"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Module is a long-running operation kept alive on the local host
type Module struct {
	Operation string
	Args      []string
	Replicas  int

	// Timeout bounds one run; zero waits for the module to exit on its own
	Timeout time.Duration
}

// Outcome describes what happened to a module during a tick
type Outcome string

const (
	OutcomeSkipped      Outcome = "skipped"
	OutcomeCompleted    Outcome = "completed"
	OutcomeTerminated   Outcome = "terminated"
	OutcomeOverrun      Outcome = "overrun"
	OutcomeLaunchFailed Outcome = "launch_failed"
	OutcomeInterrupted  Outcome = "interrupted"
)

// ModuleResult reports one module's tick
type ModuleResult struct {
	Operation string
	Outcome   Outcome
	Reason    string
	Duration  time.Duration
}

// Supervisor launches and watches modules sequentially
type Supervisor struct {
	driver    fleet.Driver
	cfg       *config.Config
	host      string
	modules   []Module
	transport log.Transport
	broker    *events.Broker
	logger    zerolog.Logger
}

// NewSupervisor creates a supervisor for the configured local node.
// transport may be nil when modules do not ship logs.
func NewSupervisor(driver fleet.Driver, cfg *config.Config, modules []Module, transport log.Transport, broker *events.Broker) *Supervisor {
	return &Supervisor{
		driver:    driver,
		cfg:       cfg,
		host:      cfg.LocalNode,
		modules:   modules,
		transport: transport,
		broker:    broker,
		logger:    log.WithNodeID(log.WithComponent("supervisor"), cfg.LocalNode),
	}
}

// Run supervises until the context is cancelled
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)
		metrics.UpdateComponent(metrics.ComponentSupervisor, true, "")

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Tick visits every module once, in registration order. A launched module
// is watched until it exits or times out before the next one is considered.
func (s *Supervisor) Tick(ctx context.Context) []ModuleResult {
	results := make([]ModuleResult, 0, len(s.modules))
	for _, m := range s.modules {
		if ctx.Err() != nil {
			break
		}
		results = append(results, s.supervise(ctx, m))
	}
	return results
}

func (s *Supervisor) supervise(ctx context.Context, m Module) ModuleResult {
	logger := log.WithOperation(s.logger, m.Operation)
	res := ModuleResult{Operation: m.Operation, Outcome: OutcomeSkipped}

	if s.cfg.IsDisabled(m.Operation) {
		res.Reason = "disabled"
		logger.Debug().Msg("Module disabled")
		return res
	}

	node, err := s.driver.Node(ctx, s.host)
	if err != nil {
		res.Reason = "host missing"
		logger.Warn().Err(err).Msg("Host not found")
		return res
	}

	if !node.HasStaged(m.Operation) {
		res.Reason = "not staged"
		logger.Warn().Msg("Module is not staged on host")
		return res
	}

	proc, running, err := s.find(ctx, m)
	if err != nil {
		res.Reason = "process list unavailable"
		logger.Warn().Err(err).Msg("Failed to list processes")
		return res
	}
	if running {
		// An instance we lost track of, or one that survived a terminate,
		// is held to the same timeout from its start time.
		if elapsed := time.Since(proc.StartedAt); m.Timeout > 0 && elapsed >= m.Timeout {
			res = s.terminate(ctx, logger, m)
			res.Duration = elapsed
			return res
		}
		res.Reason = types.ErrAlreadyRunning.Error()
		logger.Debug().Msg("Module already running")
		return res
	}

	cost, err := s.driver.CostOf(ctx, m.Operation)
	if err != nil {
		res.Reason = "unknown cost"
		logger.Warn().Err(err).Msg("Failed to read module cost")
		return res
	}
	if required := cost * float64(m.replicas()); node.Free() < required {
		res.Reason = "insufficient capacity"
		logger.Debug().
			Float64("free", node.Free()).
			Float64("required", required).
			Msg("Not enough capacity for module")
		return res
	}

	ok, err := s.driver.Launch(ctx, m.Operation, s.host, m.replicas(), m.Args)
	if err != nil || !ok {
		if err == nil {
			err = types.ErrLaunchFailed
		}
		res.Outcome = OutcomeLaunchFailed
		res.Reason = err.Error()
		logger.Warn().Err(err).Msg("Module launch failed")
		return res
	}

	metrics.ModuleLaunches.WithLabelValues(m.Operation).Inc()
	s.broker.Emit(events.EventModuleLaunched, m.Operation+" on "+s.host, map[string]string{"module": m.Operation})
	logger.Info().Int("replicas", m.replicas()).Dur("timeout", m.Timeout).Msg("Module launched")

	return s.watch(ctx, logger, m)
}

// watch polls a launched module until it exits or overruns its timeout
func (s *Supervisor) watch(ctx context.Context, logger zerolog.Logger, m Module) (res ModuleResult) {
	timer := metrics.NewTimer()
	defer func() {
		res.Duration = timer.Duration()
		timer.ObserveDurationVec(metrics.ModuleRunDuration, m.Operation)
	}()

	for {
		s.relay(ctx, logger)

		running, err := s.running(ctx, m)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to poll module")
		} else if !running {
			res = ModuleResult{Operation: m.Operation, Outcome: OutcomeCompleted}
			logger.Debug().Dur("elapsed", timer.Duration()).Msg("Module exited")
			return res
		}

		if m.Timeout > 0 && timer.Duration() >= m.Timeout {
			return s.terminate(ctx, logger, m)
		}

		select {
		case <-time.After(s.cfg.PollInterval):
		case <-ctx.Done():
			res = ModuleResult{Operation: m.Operation, Outcome: OutcomeInterrupted, Reason: ctx.Err().Error()}
			return res
		}
	}
}

// terminate kills an overrunning module once. A refused or failed terminate
// leaves the module overrun; the next tick finds it still running and tries
// again.
func (s *Supervisor) terminate(ctx context.Context, logger zerolog.Logger, m Module) ModuleResult {
	err := fmt.Errorf("%w: %s exceeded %s", types.ErrTimeout, m.Operation, m.Timeout)
	logger.Warn().Err(err).Msg("Terminating module")

	ok, terr := s.driver.Terminate(ctx, m.Operation, s.host, m.Args)
	s.relay(ctx, logger)
	if terr != nil || !ok {
		if terr == nil {
			terr = types.ErrTerminateFailed
		}
		logger.Error().Err(terr).Msg("Failed to terminate module")
		return ModuleResult{Operation: m.Operation, Outcome: OutcomeOverrun, Reason: terr.Error()}
	}

	metrics.ModuleTimeouts.WithLabelValues(m.Operation).Inc()
	s.broker.Emit(events.EventModuleTimeout, err.Error(), map[string]string{"module": m.Operation})
	return ModuleResult{Operation: m.Operation, Outcome: OutcomeTerminated, Reason: err.Error()}
}

func (s *Supervisor) running(ctx context.Context, m Module) (bool, error) {
	_, ok, err := s.find(ctx, m)
	return ok, err
}

// find returns the oldest running instance of m on the host
func (s *Supervisor) find(ctx context.Context, m Module) (types.Process, bool, error) {
	procs, err := s.driver.Processes(ctx, s.host)
	if err != nil {
		return types.Process{}, false, err
	}
	var (
		oldest types.Process
		found  bool
	)
	for _, p := range procs {
		if !p.Matches(m.Operation, m.Args) {
			continue
		}
		if !found || p.StartedAt.Before(oldest.StartedAt) {
			oldest, found = p, true
		}
	}
	return oldest, found, nil
}

// relay copies module logs into our output and flushes buffered lines
func (s *Supervisor) relay(ctx context.Context, logger zerolog.Logger) {
	if _, err := log.Relay(ctx, s.transport, log.Output()); err != nil {
		logger.Warn().Err(err).Msg("Failed to drain log transport")
	}
	if err := log.Flush(); err != nil {
		logger.Warn().Err(err).Msg("Failed to flush logs")
	}
}

func (m Module) replicas() int {
	if m.Replicas <= 0 {
		return 1
	}
	return m.Replicas
}
