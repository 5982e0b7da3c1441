package botnet

import (
	"context"
	"math"

	"github.com/cuemby/burrow/pkg/action"
	"github.com/cuemby/burrow/pkg/allocator"
	"github.com/cuemby/burrow/pkg/target"
	"github.com/cuemby/burrow/pkg/task"
	"github.com/cuemby/burrow/pkg/types"
)

// AttackAction runs one operation against every free target in its phase
type AttackAction struct {
	action.Base
	phase target.Phase
	task  *task.Task
}

// NewWeakenAction lowers the level of targets above their minimum
func NewWeakenAction() *AttackAction {
	a := newAttack("Weaken targets", OpWeaken, target.PhaseWeaken)
	a.task.ReplicasNeeded = func(ctx context.Context, env *action.Env, t types.Target) (int, error) {
		return target.WeakenReplicas(t), nil
	}
	return a
}

// NewGrowAction raises the value of weakened targets to their maximum
func NewGrowAction(model GrowthModel) *AttackAction {
	a := newAttack("Grow targets", OpGrow, target.PhaseGrow)
	a.task.ReplicasNeeded = func(ctx context.Context, env *action.Env, t types.Target) (int, error) {
		return target.GrowReplicas(t, func(t types.Target, multiplier float64) (float64, error) {
			return model.GrowthReplicas(ctx, t, multiplier)
		})
	}
	return a
}

// NewHackAction splits spare fleet capacity across targets ready to hack.
// The share is recomputed from fresh state on every call, so earlier
// targets in a run consume capacity before later ones are sized.
func NewHackAction() *AttackAction {
	a := newAttack("Hack targets", OpHack, target.PhaseHack)
	a.task.ReplicasNeeded = func(ctx context.Context, env *action.Env, t types.Target) (int, error) {
		spare, err := a.spare(ctx, env)
		if err != nil {
			return 0, err
		}
		targets, err := a.targets(ctx, env)
		if err != nil {
			return 0, err
		}
		return target.HackReplicas(spare, len(targets)), nil
	}
	return a
}

func newAttack(name, op string, phase target.Phase) *AttackAction {
	a := &AttackAction{
		Base:  action.Base{ActionName: name, StaticPriority: AttackPriority},
		phase: phase,
	}
	a.task = &task.Task{Operation: op, Targets: a.targets}
	return a
}

// Operation returns the launched operation
func (a *AttackAction) Operation() string {
	return a.task.Operation
}

func (a *AttackAction) targets(ctx context.Context, env *action.Env) ([]types.Target, error) {
	candidates, err := Candidates(ctx, env)
	if err != nil {
		return nil, err
	}
	var out []types.Target
	for _, t := range candidates {
		if target.Classify(t) == a.phase {
			out = append(out, t)
		}
	}
	return out, nil
}

// spare is the pooled replica room left on the usable fleet
func (a *AttackAction) spare(ctx context.Context, env *action.Env) (float64, error) {
	cost, err := env.Driver.CostOf(ctx, a.task.Operation)
	if err != nil {
		return 0, err
	}
	return allocator.SpareReplicas(env.Usable(), cost, env.Config.LocalReserve), nil
}

// Actionable implements action.Action
func (a *AttackAction) Actionable(ctx context.Context, env *action.Env) (bool, error) {
	spare, err := a.spare(ctx, env)
	if err != nil {
		return false, err
	}
	if math.Floor(spare) <= 0 {
		return false, nil
	}
	targets, err := a.targets(ctx, env)
	if err != nil {
		return false, err
	}
	return len(targets) > 0, nil
}

// Perform implements action.Action
func (a *AttackAction) Perform(ctx context.Context, env *action.Env) (action.Result, error) {
	tasks, err := a.task.Run(ctx, env)
	if err != nil {
		return action.Result{}, err
	}
	return action.NewResult(a.Name(), tasks...), nil
}
