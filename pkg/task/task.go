// Package task runs one operation against a set of targets, placing
// replicas on the fleet until each target's need is met or capacity runs out.
package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/burrow/pkg/action"
	"github.com/cuemby/burrow/pkg/allocator"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
)

// Selector returns the targets a task should work on this tick
type Selector func(ctx context.Context, env *action.Env) ([]types.Target, error)

// NeedFunc returns the total number of replicas a target needs
type NeedFunc func(ctx context.Context, env *action.Env, t types.Target) (int, error)

// Task binds an operation to a target selector and a replica need.
// It holds no state between runs.
type Task struct {
	Operation      string
	Targets        Selector
	ReplicasNeeded NeedFunc
}

// Running counts the replicas of the task's operation already working on a target
func (t *Task) Running(env *action.Env, targetID string) int {
	return env.Fleet.Replicas(env.Fleet.Nodes(), t.Operation, []string{targetID})
}

// Remaining reads the target fresh and returns need minus running replicas
func (t *Task) Remaining(ctx context.Context, env *action.Env, targetID string) (types.Target, int, error) {
	target, err := env.Driver.Target(ctx, targetID)
	if err != nil {
		return types.Target{}, 0, fmt.Errorf("%w: failed to read target %s: %v", types.ErrSnapshotUnavailable, targetID, err)
	}
	need, err := t.ReplicasNeeded(ctx, env, target)
	if err != nil {
		return target, 0, fmt.Errorf("failed to compute need for %s: %w", targetID, err)
	}
	return target, need - t.Running(env, targetID), nil
}

// Run executes the task against every selected target and returns one
// result per launch attempt. A failed launch abandons its target for this
// run; other targets proceed.
func (t *Task) Run(ctx context.Context, env *action.Env) ([]action.TaskResult, error) {
	logger := log.WithOperation(env.Logger, t.Operation)

	cost, err := env.Driver.CostOf(ctx, t.Operation)
	if err != nil {
		return nil, fmt.Errorf("failed to read cost of %s: %w", t.Operation, err)
	}

	targets, err := t.Targets(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("failed to select targets for %s: %w", t.Operation, err)
	}

	var results []action.TaskResult
	for _, selected := range targets {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		_, needed, err := t.Remaining(ctx, env, selected.ID)
		if err != nil {
			logger.Warn().Err(err).Str("target", selected.ID).Msg("Skipping target")
			continue
		}

		results = append(results, t.runTarget(ctx, env, selected.ID, cost, needed)...)
	}

	return results, nil
}

// runTarget places replicas for one target until its need is met. Launched
// replicas only change the target once they finish, so the recomputed need
// can stay high within one run; the loop stops after placing the need it
// started with so a single run never overshoots it.
func (t *Task) runTarget(ctx context.Context, env *action.Env, targetID string, cost float64, needed int) []action.TaskResult {
	logger := log.WithTarget(log.WithOperation(env.Logger, t.Operation), targetID)

	var results []action.TaskResult
	initial := needed
	started := 0

	for needed > 0 && started < initial {
		placement, err := allocator.Allocate(env.Usable(), cost, needed, env.Config.LocalReserve)
		if errors.Is(err, types.ErrCapacityExhausted) {
			logger.Debug().Int("needed", needed).Msg("No capacity left")
			break
		}
		if err != nil {
			results = append(results, action.TaskResult{
				Operation: t.Operation,
				Target:    targetID,
				Err:       err,
			})
			break
		}

		nodeID := placement.Node.ID
		res := action.TaskResult{
			Operation: t.Operation,
			Node:      nodeID,
			Target:    targetID,
			Replicas:  placement.Replicas,
		}

		if err := env.Driver.StageIfAbsent(ctx, t.Operation, nodeID); err != nil {
			res.Err = fmt.Errorf("failed to stage %s on %s: %w", t.Operation, nodeID, err)
			results = append(results, res)
			metrics.LaunchFailures.WithLabelValues(t.Operation).Inc()
			break
		}

		ok, err := env.Driver.Launch(ctx, t.Operation, nodeID, placement.Replicas, []string{targetID})
		if err != nil || !ok {
			if err == nil {
				err = types.ErrLaunchFailed
			}
			res.Err = fmt.Errorf("%s on %s: %w", t.Operation, nodeID, err)
			results = append(results, res)
			metrics.LaunchFailures.WithLabelValues(t.Operation).Inc()
			logger.Warn().Err(res.Err).Str("node", nodeID).Int("replicas", placement.Replicas).Msg("Launch failed")
			break
		}

		res.Success = true
		results = append(results, res)
		started += placement.Replicas
		metrics.ReplicasLaunched.WithLabelValues(t.Operation).Add(float64(placement.Replicas))
		logger.Debug().Str("node", nodeID).Int("replicas", placement.Replicas).Msg("Launched replicas")

		if err := env.Fleet.RefreshNode(ctx, nodeID); err != nil {
			logger.Warn().Err(err).Str("node", nodeID).Msg("Failed to refresh node after launch")
			break
		}
		if _, needed, err = t.Remaining(ctx, env, targetID); err != nil {
			logger.Warn().Err(err).Msg("Failed to re-read target after launch")
			break
		}
	}

	return results
}
