package fleet

import (
	"context"

	"github.com/cuemby/burrow/pkg/types"
)

// NodeSource discovers the fleet
type NodeSource interface {
	// Nodes returns every known node
	Nodes(ctx context.Context) ([]types.NodeRecord, error)

	// Node re-reads a single node
	Node(ctx context.Context, id string) (types.NodeRecord, error)

	// Processes lists the operations running on a node
	Processes(ctx context.Context, nodeID string) ([]types.Process, error)
}

// Launcher starts and stops operations on nodes
type Launcher interface {
	// Launch starts replicas of op on a node. False means the node refused.
	Launch(ctx context.Context, op, nodeID string, replicas int, args []string) (bool, error)

	// Terminate stops the instance of op matching args on a node
	Terminate(ctx context.Context, op, nodeID string, args []string) (bool, error)

	// CostOf returns the capacity one replica of op consumes
	CostOf(ctx context.Context, op string) (float64, error)

	// StageIfAbsent copies op (or a marker) onto a node when it is missing
	StageIfAbsent(ctx context.Context, op, nodeID string) error
}

// TargetSource reads contended resources
type TargetSource interface {
	Targets(ctx context.Context) ([]types.Target, error)
	Target(ctx context.Context, id string) (types.Target, error)
}

// AccountSource reads the operator's account
type AccountSource interface {
	Account(ctx context.Context) (types.Account, error)
}

// Driver bundles every collaborator the scheduler consumes
type Driver interface {
	NodeSource
	Launcher
	TargetSource
	AccountSource
}
