package fleet

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/burrow/pkg/types"
)

// Snapshot is the tick-scoped view of the fleet.
// It has a single writer (the running tick) and is not safe for concurrent use.
type Snapshot struct {
	source NodeSource
	nodes  map[string]types.NodeRecord
	procs  map[string][]types.Process
}

// NewSnapshot creates an empty snapshot backed by source
func NewSnapshot(source NodeSource) *Snapshot {
	return &Snapshot{
		source: source,
		nodes:  make(map[string]types.NodeRecord),
		procs:  make(map[string][]types.Process),
	}
}

// Refresh rebuilds the whole snapshot
func (s *Snapshot) Refresh(ctx context.Context) error {
	records, err := s.source.Nodes(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to list nodes: %v", types.ErrSnapshotUnavailable, err)
	}

	nodes := make(map[string]types.NodeRecord, len(records))
	procs := make(map[string][]types.Process, len(records))
	for _, n := range records {
		p, err := s.source.Processes(ctx, n.ID)
		if err != nil {
			return fmt.Errorf("%w: failed to list processes on %s: %v", types.ErrSnapshotUnavailable, n.ID, err)
		}
		nodes[n.ID] = n
		procs[n.ID] = p
	}

	s.nodes = nodes
	s.procs = procs
	return nil
}

// RefreshNode re-reads one node and its processes
func (s *Snapshot) RefreshNode(ctx context.Context, id string) error {
	n, err := s.source.Node(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: failed to read node %s: %v", types.ErrSnapshotUnavailable, id, err)
	}
	p, err := s.source.Processes(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: failed to list processes on %s: %v", types.ErrSnapshotUnavailable, id, err)
	}
	s.nodes[id] = n
	s.procs[id] = p
	return nil
}

// Nodes returns every node sorted by ID
func (s *Snapshot) Nodes() []types.NodeRecord {
	return s.Filter(func(types.NodeRecord) bool { return true })
}

// Filter returns the nodes accepted by keep, sorted by ID
func (s *Snapshot) Filter(keep func(types.NodeRecord) bool) []types.NodeRecord {
	out := make([]types.NodeRecord, 0, len(s.nodes))
	for _, n := range s.nodes {
		if keep(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Node returns one node by ID
func (s *Snapshot) Node(id string) (types.NodeRecord, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Processes returns the processes last seen on a node
func (s *Snapshot) Processes(nodeID string) []types.Process {
	return s.procs[nodeID]
}

// Placed is a process together with the node it runs on
type Placed struct {
	NodeID  string
	Process types.Process
}

// Search finds processes matching op and positional args across nodes.
// Nodes are visited in ID order.
func (s *Snapshot) Search(nodes []types.NodeRecord, op string, args []string) []Placed {
	var found []Placed
	for _, n := range nodes {
		for _, p := range s.procs[n.ID] {
			if p.Matches(op, args) {
				found = append(found, Placed{NodeID: n.ID, Process: p})
			}
		}
	}
	return found
}

// Replicas sums replica counts of processes matching op and args on nodes
func (s *Snapshot) Replicas(nodes []types.NodeRecord, op string, args []string) int {
	total := 0
	for _, p := range s.Search(nodes, op, args) {
		total += p.Process.Replicas
	}
	return total
}

// Usable returns rooted nodes that are not being drained for an upgrade
func (s *Snapshot) Usable(upgradeMarker string) []types.NodeRecord {
	return s.Filter(func(n types.NodeRecord) bool {
		return n.Rooted && !n.HasStaged(upgradeMarker)
	})
}

// Purchased returns bought nodes sorted by capacity, then ID
func (s *Snapshot) Purchased() []types.NodeRecord {
	out := s.Filter(func(n types.NodeRecord) bool { return n.IsPurchased() })
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalCapacity < out[j].TotalCapacity
	})
	return out
}

// Capacity sums total and used capacity over nodes
func Capacity(nodes []types.NodeRecord) (total, used float64) {
	for _, n := range nodes {
		total += n.TotalCapacity
		used += n.UsedCapacity
	}
	return total, used
}
