package types

import (
	"time"
)

// Ownership classifies who controls a node
type Ownership string

const (
	OwnershipLocal     Ownership = "local"     // The host the agent runs on
	OwnershipPurchased Ownership = "purchased" // Bought through the market
	OwnershipExternal  Ownership = "external"  // Discovered, must be breached before use
)

// NodeRecord is a per-tick snapshot of one node in the fleet
type NodeRecord struct {
	ID            string
	TotalCapacity float64
	UsedCapacity  float64
	Ownership     Ownership
	Rooted        bool
	PortsRequired int
	RequiredSkill int
	Staged        []string // Operations (and marker files) present on the node
}

// Free returns capacity not consumed by running processes
func (n *NodeRecord) Free() float64 {
	free := n.TotalCapacity - n.UsedCapacity
	if free < 0 {
		return 0
	}
	return free
}

// IsLocal reports whether this is the agent's own host
func (n *NodeRecord) IsLocal() bool {
	return n.Ownership == OwnershipLocal
}

// IsPurchased reports whether the node was bought through the market
func (n *NodeRecord) IsPurchased() bool {
	return n.Ownership == OwnershipPurchased
}

// HasStaged reports whether name is present on the node
func (n *NodeRecord) HasStaged(name string) bool {
	for _, s := range n.Staged {
		if s == name {
			return true
		}
	}
	return false
}

// Process is one running operation instance as reported by a node
type Process struct {
	Operation string
	Args      []string
	Replicas  int
	StartedAt time.Time
}

// Matches reports whether the process runs op with args as a positional prefix.
// An empty op matches any operation, nil args match any arguments.
func (p Process) Matches(op string, args []string) bool {
	if op != "" && p.Operation != op {
		return false
	}
	if len(args) > len(p.Args) {
		return false
	}
	for i, a := range args {
		if p.Args[i] != a {
			return false
		}
	}
	return true
}

// FirstArg returns the first argument or "" when there is none
func (p Process) FirstArg() string {
	if len(p.Args) == 0 {
		return ""
	}
	return p.Args[0]
}

// Target is a contended resource driven toward its goal state.
// Level is the security-like attribute, Value the value-like one.
type Target struct {
	ID            string
	Level         float64
	MinLevel      float64
	Value         float64
	MaxValue      float64
	Cores         int
	RequiredSkill int
	Rooted        bool
	Growth        float64
}

// Account is a snapshot of the operator's spendable resources
type Account struct {
	Money       float64
	Skill       int
	PortOpeners int
}

// Spendable returns money available above the given reserve
func (a Account) Spendable(reserve float64) float64 {
	return a.Money - reserve
}
