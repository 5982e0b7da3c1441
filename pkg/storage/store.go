package storage

import (
	"time"

	"github.com/cuemby/burrow/pkg/types"
)

// ProcessRecord is a running operation instance as persisted by the store
type ProcessRecord struct {
	ID        string        `json:"id"`
	NodeID    string        `json:"node_id"`
	Process   types.Process `json:"process"`
	ExpiresAt time.Time     `json:"expires_at,omitempty"`
}

// Store defines the interface for simulated world state
type Store interface {
	// Nodes
	CreateNode(node *types.NodeRecord) error
	GetNode(id string) (*types.NodeRecord, error)
	ListNodes() ([]*types.NodeRecord, error)
	UpdateNode(node *types.NodeRecord) error
	DeleteNode(id string) error

	// Targets
	CreateTarget(target *types.Target) error
	GetTarget(id string) (*types.Target, error)
	ListTargets() ([]*types.Target, error)
	UpdateTarget(target *types.Target) error

	// Processes
	CreateProcess(proc *ProcessRecord) error
	ListProcesses() ([]*ProcessRecord, error)
	ListProcessesByNode(nodeID string) ([]*ProcessRecord, error)
	DeleteProcess(id string) error

	// Operation costs
	SetCost(op string, cost float64) error
	GetCost(op string) (float64, error)

	// Account
	GetAccount() (*types.Account, error)
	SaveAccount(account *types.Account) error

	// Log port
	AppendLog(line []byte) error
	DrainLog() ([][]byte, error)

	// Utility
	Close() error
}
