package botnet

import (
	"context"
	"fmt"

	"github.com/cuemby/burrow/pkg/action"
)

// BreachAction roots every vulnerable external node
type BreachAction struct {
	action.Base
	breacher Breacher
}

// NewBreachAction creates the breach action
func NewBreachAction(b Breacher) *BreachAction {
	return &BreachAction{
		Base:     action.Base{ActionName: "Breach vulnerable nodes", StaticPriority: BreachPriority},
		breacher: b,
	}
}

// Actionable implements action.Action
func (a *BreachAction) Actionable(ctx context.Context, env *action.Env) (bool, error) {
	return len(Vulnerable(env)) > 0, nil
}

// Perform implements action.Action
func (a *BreachAction) Perform(ctx context.Context, env *action.Env) (action.Result, error) {
	var tasks []action.TaskResult
	for _, n := range Vulnerable(env) {
		env.Logger.Info().Str("node", n.ID).Msg("Breaching node")
		res := action.TaskResult{Operation: "breach", Node: n.ID}

		if _, err := a.breacher.Breach(ctx, n.ID); err != nil {
			res.Err = fmt.Errorf("failed to breach %s: %w", n.ID, err)
			tasks = append(tasks, res)
			continue
		}
		if err := env.Fleet.RefreshNode(ctx, n.ID); err != nil {
			res.Err = err
			tasks = append(tasks, res)
			continue
		}

		fresh, _ := env.Fleet.Node(n.ID)
		res.Success = fresh.Rooted
		if !res.Success {
			res.Detail = "root not gained"
		}
		tasks = append(tasks, res)
	}
	return action.NewResult(a.Name(), tasks...), nil
}
