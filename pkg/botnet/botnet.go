// Package botnet holds the hacking engine's actions: breaching vulnerable
// nodes and driving every rooted target through weaken, grow and hack.
package botnet

import (
	"context"
	"sort"

	"github.com/cuemby/burrow/pkg/action"
	"github.com/cuemby/burrow/pkg/types"
)

// Operation names launched on the fleet
const (
	OpWeaken = "weaken"
	OpGrow   = "grow"
	OpHack   = "hack"
)

// AttackOperations lists every operation that occupies a target
var AttackOperations = []string{OpWeaken, OpGrow, OpHack}

// Action priorities
const (
	BreachPriority = 10
	AttackPriority = 20
)

// GrowthModel estimates how many grow replicas multiply a target's value
type GrowthModel interface {
	GrowthReplicas(ctx context.Context, t types.Target, multiplier float64) (float64, error)
}

// Breacher gains root on a node using every port opener the account owns
type Breacher interface {
	Breach(ctx context.Context, nodeID string) (bool, error)
}

// Targeted returns the IDs referenced as first argument by any running
// attack replica anywhere in the fleet.
func Targeted(env *action.Env) map[string]bool {
	nodes := env.Fleet.Nodes()
	out := make(map[string]bool)
	for _, op := range AttackOperations {
		for _, placed := range env.Fleet.Search(nodes, op, nil) {
			if id := placed.Process.FirstArg(); id != "" {
				out[id] = true
			}
		}
	}
	return out
}

// Candidates returns the targets worth attacking that nothing is working on,
// smallest maximum value first.
func Candidates(ctx context.Context, env *action.Env) ([]types.Target, error) {
	all, err := env.Driver.Targets(ctx)
	if err != nil {
		return nil, err
	}

	busy := Targeted(env)
	var out []types.Target
	for _, t := range all {
		if !t.Rooted || t.MaxValue <= 0 || t.Growth <= 0 || busy[t.ID] {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MaxValue != out[j].MaxValue {
			return out[i].MaxValue < out[j].MaxValue
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Vulnerable returns external nodes the account can breach right now
func Vulnerable(env *action.Env) []types.NodeRecord {
	return env.Fleet.Filter(func(n types.NodeRecord) bool {
		return n.Ownership == types.OwnershipExternal &&
			!n.Rooted &&
			n.PortsRequired <= env.Account.PortOpeners &&
			n.RequiredSkill <= env.Account.Skill
	})
}
