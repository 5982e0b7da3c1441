package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cuemby/burrow/pkg/action"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scheduler picks and runs the most urgent actions of one engine every tick
type Scheduler struct {
	name    string
	actions []action.Action
	env     *action.Env
	broker  *events.Broker
	logger  zerolog.Logger
}

// Evaluation is the outcome of asking one action whether it has work
type Evaluation struct {
	Action     action.Action
	Actionable bool
	Priority   int
	Err        error
}

// TickReport summarizes one tick
type TickReport struct {
	ID      string
	Idle    bool
	Results []action.Result
}

// NewScheduler creates a scheduler. Actions keep their registration order,
// which breaks priority ties. The scheduler logs through env.Logger.
func NewScheduler(name string, env *action.Env, actions []action.Action, broker *events.Broker) *Scheduler {
	return &Scheduler{
		name:    name,
		actions: actions,
		env:     env,
		broker:  broker,
		logger:  env.Logger.With().Str("component", "scheduler").Str("engine", name).Logger(),
	}
}

// Name returns the engine name
func (s *Scheduler) Name() string {
	return s.name
}

// Run ticks every interval until the context is cancelled
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Tick skipped")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Evaluate refreshes the environment and asks every action whether it is
// actionable and, only when it is, for its priority.
func (s *Scheduler) Evaluate(ctx context.Context) ([]Evaluation, error) {
	if err := s.env.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.evaluate(ctx), nil
}

func (s *Scheduler) evaluate(ctx context.Context) []Evaluation {
	evals := make([]Evaluation, 0, len(s.actions))
	for _, a := range s.actions {
		ev := Evaluation{Action: a}
		ok, err := s.actionable(ctx, a)
		if err != nil {
			ev.Err = err
			s.logger.Error().Err(err).Str("action", a.Name()).Msg("Failed to evaluate action")
			evals = append(evals, ev)
			continue
		}
		if ok {
			p, err := a.Priority(ctx, s.env)
			if err != nil {
				ev.Err = fmt.Errorf("priority: %w", err)
				s.logger.Error().Err(err).Str("action", a.Name()).Msg("Failed to compute priority")
			} else {
				ev.Actionable = true
				ev.Priority = p
			}
		}
		evals = append(evals, ev)
	}
	return evals
}

// Tick runs one scheduling round. The returned error is set only when the
// fleet could not be read, in which case the tick is idle.
func (s *Scheduler) Tick(ctx context.Context) (TickReport, error) {
	report := TickReport{ID: uuid.New().String()}
	logger := s.logger.With().Str("tick", report.ID).Logger()
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.TickDuration)
		if err := log.Flush(); err != nil {
			logger.Error().Err(err).Msg("Failed to flush logs")
		}
	}()

	if err := s.env.Refresh(ctx); err != nil {
		report.Idle = true
		metrics.TicksTotal.WithLabelValues("unavailable").Inc()
		metrics.UpdateComponent(metrics.ComponentScheduler, false, err.Error())
		return report, err
	}
	metrics.UpdateComponent(metrics.ComponentScheduler, true, "")

	batch := selectBatch(s.evaluate(ctx))
	if len(batch) == 0 {
		report.Idle = true
		metrics.TicksTotal.WithLabelValues("idle").Inc()
		s.broker.Emit(events.EventTickIdle, "Nothing to do.", map[string]string{"engine": s.name})
		logger.Debug().Msg("Nothing to do.")
		return report, nil
	}

	for i, a := range batch {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			// The previous action changed the fleet; work from fresh state
			if err := s.env.Refresh(ctx); err != nil {
				logger.Warn().Err(err).Msg("Refresh failed, abandoning batch")
				break
			}
			ok, err := s.actionable(ctx, a)
			if err != nil {
				logger.Error().Err(err).Str("action", a.Name()).Msg("Failed to evaluate action")
				continue
			}
			if !ok {
				logger.Debug().Str("action", a.Name()).Msg("No longer actionable")
				continue
			}
		}

		result := s.perform(ctx, a)
		report.Results = append(report.Results, result)
		s.record(logger, result)
	}

	metrics.TicksTotal.WithLabelValues("executed").Inc()
	return report, nil
}

// selectBatch returns the actionable actions sharing the lowest priority,
// in registration order.
func selectBatch(evals []Evaluation) []action.Action {
	best := 0
	found := false
	for _, ev := range evals {
		if ev.Actionable && (!found || ev.Priority < best) {
			best = ev.Priority
			found = true
		}
	}

	var batch []action.Action
	for _, ev := range evals {
		if ev.Actionable && ev.Priority == best {
			batch = append(batch, ev.Action)
		}
	}
	return batch
}

func (s *Scheduler) actionable(ctx context.Context, a action.Action) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic in %s: %v", a.Name(), r)
		}
	}()
	return a.Actionable(ctx, s.env)
}

func (s *Scheduler) perform(ctx context.Context, a action.Action) (result action.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = action.Failed(a.Name(), fmt.Errorf("panic: %v", r))
		}
	}()

	result, err := a.Perform(ctx, s.env)
	if err != nil {
		return action.Failed(a.Name(), err)
	}
	if result.Action == "" {
		result.Action = a.Name()
	}
	return result
}

func (s *Scheduler) record(logger zerolog.Logger, result action.Result) {
	metrics.ActionsExecuted.WithLabelValues(result.Action, result.Status()).Inc()

	switch {
	case result.Err != nil:
		logger.Error().EmbedObject(result).Msg("Action executed")
	case !result.Success:
		logger.Warn().EmbedObject(result).Msg("Action executed")
	default:
		logger.Info().EmbedObject(result).Msg("Action executed")
	}

	succeeded, failed := result.Counts()
	s.broker.Emit(events.EventActionExecuted, result.Action+": "+result.Status(), map[string]string{
		"engine":    s.name,
		"succeeded": strconv.Itoa(succeeded),
		"failed":    strconv.Itoa(failed),
	})
	for _, t := range result.Tasks {
		meta := map[string]string{
			"operation": t.Operation,
			"node":      t.Node,
			"target":    t.Target,
			"replicas":  strconv.Itoa(t.Replicas),
		}
		if t.Success {
			s.broker.Emit(events.EventReplicaLaunched, t.Operation+" on "+t.Node, meta)
		} else {
			s.broker.Emit(events.EventLaunchFailed, t.Operation+" on "+t.Node, meta)
		}
	}
}
