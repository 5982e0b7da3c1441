package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/burrow/pkg/action"
)

// Action priorities
const (
	MarkPriority     = 10
	RemovePriority   = 20
	PurchasePriority = 30
)

// Operation names recorded in task results
const (
	OpMark     = "mark"
	OpDelete   = "delete"
	OpPurchase = "purchase"
)

// MarkForUpgradeAction flags the purchased node that gains most from an
// upgrade, once every slot is taken. Flagged nodes stop receiving replicas.
type MarkForUpgradeAction struct {
	action.Base
	market Market
}

// NewMarkForUpgradeAction creates the mark action
func NewMarkForUpgradeAction(m Market) *MarkForUpgradeAction {
	return &MarkForUpgradeAction{
		Base:   action.Base{ActionName: "Mark nodes for upgrade", StaticPriority: MarkPriority},
		market: m,
	}
}

// Actionable implements action.Action
func (a *MarkForUpgradeAction) Actionable(ctx context.Context, env *action.Env) (bool, error) {
	if !env.Config.SpendMoney {
		return false, nil
	}
	st, err := Evaluate(ctx, env, a.market)
	if err != nil {
		return false, err
	}
	return st.SlotsAvailable == 0 &&
		len(st.Marked) == 0 &&
		st.MaxAffordable != nil &&
		len(st.Upgrades) > 0 &&
		len(st.Maxed) < st.Limit, nil
}

// Perform implements action.Action
func (a *MarkForUpgradeAction) Perform(ctx context.Context, env *action.Env) (action.Result, error) {
	st, err := Evaluate(ctx, env, a.market)
	if err != nil {
		return action.Result{}, err
	}
	if len(st.Upgrades) == 0 {
		return action.NewResult(a.Name()), nil
	}

	u := st.Upgrades[0]
	res := action.TaskResult{
		Operation: OpMark,
		Node:      u.NodeID,
		Detail:    fmt.Sprintf("%v -> %v (jump %v)", u.Capacity, u.Next.Capacity, u.Jump),
	}
	if err := env.Driver.StageIfAbsent(ctx, env.Config.UpgradeMarker, u.NodeID); err != nil {
		res.Err = err
	} else {
		res.Success = true
	}
	return action.NewResult(a.Name(), res), nil
}

// RemoveMarkedAction deletes flagged nodes once their replicas are gone
type RemoveMarkedAction struct {
	action.Base
	market Market
}

// NewRemoveMarkedAction creates the remove action
func NewRemoveMarkedAction(m Market) *RemoveMarkedAction {
	return &RemoveMarkedAction{
		Base:   action.Base{ActionName: "Remove nodes marked for upgrade", StaticPriority: RemovePriority},
		market: m,
	}
}

func (a *RemoveMarkedAction) drained(env *action.Env) []string {
	var ids []string
	for _, n := range env.Fleet.Purchased() {
		if n.HasStaged(env.Config.UpgradeMarker) && len(env.Fleet.Processes(n.ID)) == 0 {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Actionable implements action.Action
func (a *RemoveMarkedAction) Actionable(ctx context.Context, env *action.Env) (bool, error) {
	return env.Config.SpendMoney && len(a.drained(env)) > 0, nil
}

// Perform implements action.Action
func (a *RemoveMarkedAction) Perform(ctx context.Context, env *action.Env) (action.Result, error) {
	var tasks []action.TaskResult
	for _, id := range a.drained(env) {
		n, _ := env.Fleet.Node(id)
		res := action.TaskResult{Operation: OpDelete, Node: id, Detail: fmt.Sprintf("capacity %v", n.TotalCapacity)}
		ok, err := a.market.Delete(ctx, id)
		res.Success = ok && err == nil
		res.Err = err
		tasks = append(tasks, res)
	}
	return action.NewResult(a.Name(), tasks...), nil
}

// PurchaseAction buys the largest affordable node while slots remain
type PurchaseAction struct {
	action.Base
	market Market
}

// NewPurchaseAction creates the purchase action
func NewPurchaseAction(m Market) *PurchaseAction {
	return &PurchaseAction{
		Base:   action.Base{ActionName: "Purchase new nodes", StaticPriority: PurchasePriority},
		market: m,
	}
}

// Actionable implements action.Action
func (a *PurchaseAction) Actionable(ctx context.Context, env *action.Env) (bool, error) {
	if !env.Config.SpendMoney {
		return false, nil
	}
	st, err := Evaluate(ctx, env, a.market)
	if err != nil {
		return false, err
	}
	return st.SlotsAvailable > 0 && st.MaxAffordable != nil, nil
}

// Perform implements action.Action
func (a *PurchaseAction) Perform(ctx context.Context, env *action.Env) (action.Result, error) {
	st, err := Evaluate(ctx, env, a.market)
	if err != nil {
		return action.Result{}, err
	}
	if st.MaxAffordable == nil {
		return action.NewResult(a.Name()), nil
	}

	prefix := env.Config.PurchasePrefix
	id, err := a.market.Purchase(ctx, prefix, st.MaxAffordable.Capacity)
	res := action.TaskResult{
		Operation: OpPurchase,
		Node:      id,
		Success:   err == nil && strings.HasPrefix(id, prefix),
		Detail:    fmt.Sprintf("capacity %v for %.0f", st.MaxAffordable.Capacity, st.MaxAffordable.Cost),
		Err:       err,
	}
	if res.Node == "" {
		res.Node = prefix
	}
	return action.NewResult(a.Name(), res), nil
}
