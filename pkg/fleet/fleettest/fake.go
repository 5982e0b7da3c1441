// Package fleettest provides an in-memory fleet driver for tests.
package fleettest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/types"
)

// LaunchCall records one Launch invocation
type LaunchCall struct {
	Operation string
	NodeID    string
	Replicas  int
	Args      []string
	OK        bool
}

// Driver is an in-memory implementation of fleet.Driver.
// Launches consume node capacity immediately; processes live until
// Finish or Terminate removes them.
type Driver struct {
	mu sync.Mutex

	nodes   map[string]types.NodeRecord
	procs   map[string][]types.Process
	targets map[string]types.Target
	costs   map[string]float64
	account types.Account

	// RefuseLaunch, when set, makes Launch return false for matching calls
	RefuseLaunch func(op, nodeID string, args []string) bool

	// RefuseTerminate, when set, makes Terminate return false for matching
	// calls and leaves the process running
	RefuseTerminate func(op, nodeID string, args []string) bool

	// AfterLaunch runs after a successful launch while the lock is held.
	// Tests use it to change target state as a side effect.
	AfterLaunch func(d *Driver, call LaunchCall)

	// NodesErr and TargetErr force errors from the matching reads
	NodesErr  error
	TargetErr map[string]error

	Launches   []LaunchCall
	Terminated []LaunchCall
	Staged     []string
}

// New creates an empty driver
func New() *Driver {
	return &Driver{
		nodes:     make(map[string]types.NodeRecord),
		procs:     make(map[string][]types.Process),
		targets:   make(map[string]types.Target),
		costs:     make(map[string]float64),
		TargetErr: make(map[string]error),
	}
}

// AddNode registers a node
func (d *Driver) AddNode(n types.NodeRecord) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[n.ID] = n
	return d
}

// AddTarget registers a target
func (d *Driver) AddTarget(t types.Target) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets[t.ID] = t
	return d
}

// SetTarget replaces a target without locking; for use inside AfterLaunch
func (d *Driver) SetTarget(t types.Target) {
	d.targets[t.ID] = t
}

// TargetUnlocked reads a target without locking; for use inside AfterLaunch
func (d *Driver) TargetUnlocked(id string) types.Target {
	return d.targets[id]
}

// SetCost sets the per-replica cost of op
func (d *Driver) SetCost(op string, cost float64) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.costs[op] = cost
	return d
}

// SetAccount replaces the account snapshot
func (d *Driver) SetAccount(a types.Account) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.account = a
	return d
}

// AddProcess places a running process on a node, consuming capacity
func (d *Driver) AddProcess(nodeID string, p types.Process) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addProcess(nodeID, p)
	return d
}

func (d *Driver) addProcess(nodeID string, p types.Process) {
	if p.StartedAt.IsZero() {
		p.StartedAt = time.Now()
	}
	d.procs[nodeID] = append(d.procs[nodeID], p)
	n := d.nodes[nodeID]
	n.UsedCapacity += d.costs[p.Operation] * float64(p.Replicas)
	d.nodes[nodeID] = n
}

// Finish removes every process of op on a node as if it exited
func (d *Driver) Finish(op, nodeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(op, nodeID, nil)
}

func (d *Driver) remove(op, nodeID string, args []string) bool {
	kept := d.procs[nodeID][:0]
	removed := false
	for _, p := range d.procs[nodeID] {
		if p.Matches(op, args) {
			n := d.nodes[nodeID]
			n.UsedCapacity -= d.costs[p.Operation] * float64(p.Replicas)
			if n.UsedCapacity < 0 {
				n.UsedCapacity = 0
			}
			d.nodes[nodeID] = n
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	d.procs[nodeID] = kept
	return removed
}

// Nodes implements fleet.NodeSource
func (d *Driver) Nodes(ctx context.Context) ([]types.NodeRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.NodesErr != nil {
		return nil, d.NodesErr
	}
	out := make([]types.NodeRecord, 0, len(d.nodes))
	for _, n := range d.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Node implements fleet.NodeSource
func (d *Driver) Node(ctx context.Context, id string) (types.NodeRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[id]
	if !ok {
		return types.NodeRecord{}, fmt.Errorf("node %s: %w", id, types.ErrNotFound)
	}
	return n, nil
}

// Processes implements fleet.NodeSource
func (d *Driver) Processes(ctx context.Context, nodeID string) ([]types.Process, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]types.Process, len(d.procs[nodeID]))
	copy(out, d.procs[nodeID])
	return out, nil
}

// Launch implements fleet.Launcher
func (d *Driver) Launch(ctx context.Context, op, nodeID string, replicas int, args []string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	call := LaunchCall{Operation: op, NodeID: nodeID, Replicas: replicas, Args: args}
	n, ok := d.nodes[nodeID]
	switch {
	case !ok:
	case d.RefuseLaunch != nil && d.RefuseLaunch(op, nodeID, args):
	case n.Free()+1e-9 < d.costs[op]*float64(replicas):
	default:
		call.OK = true
	}
	d.Launches = append(d.Launches, call)
	if !call.OK {
		return false, nil
	}

	d.addProcess(nodeID, types.Process{Operation: op, Args: args, Replicas: replicas})
	if d.AfterLaunch != nil {
		d.AfterLaunch(d, call)
	}
	return true, nil
}

// Terminate implements fleet.Launcher
func (d *Driver) Terminate(ctx context.Context, op, nodeID string, args []string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ok := false
	if d.RefuseTerminate == nil || !d.RefuseTerminate(op, nodeID, args) {
		ok = d.remove(op, nodeID, args)
	}
	d.Terminated = append(d.Terminated, LaunchCall{Operation: op, NodeID: nodeID, Args: args, OK: ok})
	return ok, nil
}

// CostOf implements fleet.Launcher
func (d *Driver) CostOf(ctx context.Context, op string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cost, ok := d.costs[op]
	if !ok {
		return 0, fmt.Errorf("operation %s: %w", op, types.ErrNotFound)
	}
	return cost, nil
}

// StageIfAbsent implements fleet.Launcher
func (d *Driver) StageIfAbsent(ctx context.Context, op, nodeID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[nodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", nodeID, types.ErrNotFound)
	}
	if n.HasStaged(op) {
		return nil
	}
	n.Staged = append(n.Staged, op)
	d.nodes[nodeID] = n
	d.Staged = append(d.Staged, nodeID+":"+op)
	return nil
}

// Targets implements fleet.TargetSource
func (d *Driver) Targets(ctx context.Context) ([]types.Target, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]types.Target, 0, len(d.targets))
	for _, t := range d.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Target implements fleet.TargetSource
func (d *Driver) Target(ctx context.Context, id string) (types.Target, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.TargetErr[id]; err != nil {
		return types.Target{}, err
	}
	t, ok := d.targets[id]
	if !ok {
		return types.Target{}, fmt.Errorf("target %s: %w", id, types.ErrNotFound)
	}
	return t, nil
}

// Account implements fleet.AccountSource
func (d *Driver) Account(ctx context.Context) (types.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.account, nil
}

// LaunchCount returns the number of Launch calls, successful or not
func (d *Driver) LaunchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Launches)
}

// TerminateCount returns the number of Terminate calls
func (d *Driver) TerminateCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Terminated)
}

// NodeUnlocked reads a node without locking; for use inside AfterLaunch
func (d *Driver) NodeUnlocked(id string) types.NodeRecord {
	return d.nodes[id]
}

// SetNodeUnlocked replaces a node without locking; for use inside hooks
func (d *Driver) SetNodeUnlocked(n types.NodeRecord) {
	d.nodes[n.ID] = n
}

// RemoveNode deletes a node and its processes
func (d *Driver) RemoveNode(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.nodes, id)
	delete(d.procs, id)
}

// UpdateNode applies fn to a stored node
func (d *Driver) UpdateNode(id string, fn func(*types.NodeRecord)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.nodes[id]
	fn(&n)
	d.nodes[id] = n
}
