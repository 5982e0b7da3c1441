package allocator

import (
	"fmt"
	"math"
	"sort"

	"github.com/cuemby/burrow/pkg/types"
)

// Placement is the allocator's answer: how many replicas to put on which node
type Placement struct {
	Node     types.NodeRecord
	Replicas int
}

// Empty reports whether the placement carries nothing to launch
func (p Placement) Empty() bool {
	return p.Replicas <= 0 || p.Node.ID == ""
}

// Available returns how many replicas of the given cost fit on node.
// The local node keeps localReserve capacity out of reach.
func Available(node types.NodeRecord, cost, localReserve float64) int {
	if cost <= 0 {
		return 0
	}
	free := node.TotalCapacity - node.UsedCapacity
	if node.IsLocal() {
		free -= localReserve
	}
	if free <= 0 {
		return 0
	}
	return int(math.Floor(free / cost))
}

// Allocate picks the node for the next batch of replicas.
//
// Nodes are visited in lexicographic ID order and the node minimizing
// needed-available wins, first one on ties. Since that difference keeps
// falling as availability grows, the node with the most room is chosen
// (worst fit), which keeps the number of nodes touched per target low.
//
// ErrCapacityExhausted is returned when no node fits a single replica.
func Allocate(nodes []types.NodeRecord, cost float64, needed int, localReserve float64) (Placement, error) {
	if cost <= 0 || math.IsNaN(cost) {
		return Placement{}, fmt.Errorf("%w: %v", types.ErrInvalidCost, cost)
	}
	if needed <= 0 {
		return Placement{}, nil
	}

	ordered := make([]types.NodeRecord, len(nodes))
	copy(ordered, nodes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ID < ordered[j].ID
	})

	var (
		best          types.NodeRecord
		bestAvailable int
		found         bool
	)
	for _, node := range ordered {
		available := Available(node, cost, localReserve)
		if available <= 0 {
			continue
		}
		if !found || needed-available < needed-bestAvailable {
			best = node
			bestAvailable = available
			found = true
		}
	}

	if !found {
		return Placement{}, types.ErrCapacityExhausted
	}

	replicas := bestAvailable
	if needed < replicas {
		replicas = needed
	}
	return Placement{Node: best, Replicas: replicas}, nil
}

// SpareReplicas returns how many replicas of the given cost the whole set of
// nodes could still take, pooled rather than per node, after the local reserve.
// The result is not floored; callers apply their own rounding.
func SpareReplicas(nodes []types.NodeRecord, cost, localReserve float64) float64 {
	if cost <= 0 {
		return 0
	}
	var total, used float64
	for _, n := range nodes {
		total += n.TotalCapacity
		used += n.UsedCapacity
	}
	spare := total - used - localReserve
	if spare <= 0 {
		return 0
	}
	return spare / cost
}
