package storage

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/cuemby/burrow/pkg/types"
	"gopkg.in/yaml.v3"
)

//go:embed default_world.yaml
var defaultWorld []byte

// Seed describes a simulated world
type Seed struct {
	Account AccountSeed        `yaml:"account"`
	Market  MarketSeed         `yaml:"market"`
	Costs   map[string]float64 `yaml:"costs"`
	Nodes   []NodeSeed         `yaml:"nodes"`
	Targets []TargetSeed       `yaml:"targets"`
}

// AccountSeed is the starting account
type AccountSeed struct {
	Money       float64 `yaml:"money"`
	Skill       int     `yaml:"skill"`
	PortOpeners int     `yaml:"port_openers"`
}

// MarketSeed configures node purchases
type MarketSeed struct {
	Limit       int     `yaml:"limit"`
	MaxCapacity float64 `yaml:"max_capacity"`
	CostPerUnit float64 `yaml:"cost_per_unit"`
}

// NodeSeed is one starting node
type NodeSeed struct {
	ID            string   `yaml:"id"`
	Capacity      float64  `yaml:"capacity"`
	Ownership     string   `yaml:"ownership"`
	Rooted        bool     `yaml:"rooted"`
	PortsRequired int      `yaml:"ports_required"`
	RequiredSkill int      `yaml:"required_skill"`
	Staged        []string `yaml:"staged"`
}

// TargetSeed is one starting target
type TargetSeed struct {
	ID            string  `yaml:"id"`
	Level         float64 `yaml:"level"`
	MinLevel      float64 `yaml:"min_level"`
	Value         float64 `yaml:"value"`
	MaxValue      float64 `yaml:"max_value"`
	Cores         int     `yaml:"cores"`
	RequiredSkill int     `yaml:"required_skill"`
	Rooted        bool    `yaml:"rooted"`
	Growth        float64 `yaml:"growth"`
}

// DefaultSeed returns the built-in world
func DefaultSeed() (*Seed, error) {
	return ParseSeed(defaultWorld)
}

// LoadSeed reads a world from a YAML file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and checks a YAML world
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks the invariants a world must start with
func (s *Seed) Validate() error {
	seen := make(map[string]bool)
	for _, n := range s.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node without id")
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate node %s", n.ID)
		}
		seen[n.ID] = true
		switch types.Ownership(n.Ownership) {
		case types.OwnershipLocal, types.OwnershipPurchased, types.OwnershipExternal:
		default:
			return fmt.Errorf("node %s: unknown ownership %q", n.ID, n.Ownership)
		}
	}
	for _, t := range s.Targets {
		if t.Level < t.MinLevel {
			return fmt.Errorf("target %s: level below minimum", t.ID)
		}
		if t.Value < 0 || t.Value > t.MaxValue {
			return fmt.Errorf("target %s: value out of range", t.ID)
		}
	}
	for op, cost := range s.Costs {
		if cost <= 0 {
			return fmt.Errorf("operation %s: %w", op, types.ErrInvalidCost)
		}
	}
	return nil
}

func (n NodeSeed) record() *types.NodeRecord {
	return &types.NodeRecord{
		ID:            n.ID,
		TotalCapacity: n.Capacity,
		Ownership:     types.Ownership(n.Ownership),
		Rooted:        n.Rooted,
		PortsRequired: n.PortsRequired,
		RequiredSkill: n.RequiredSkill,
		Staged:        n.Staged,
	}
}

func (t TargetSeed) target() *types.Target {
	return &types.Target{
		ID:            t.ID,
		Level:         t.Level,
		MinLevel:      t.MinLevel,
		Value:         t.Value,
		MaxValue:      t.MaxValue,
		Cores:         t.Cores,
		RequiredSkill: t.RequiredSkill,
		Rooted:        t.Rooted,
		Growth:        t.Growth,
	}
}
