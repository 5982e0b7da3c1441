package target

import (
	"fmt"
	"math"

	"github.com/cuemby/burrow/pkg/types"
)

// Phase is the mutually exclusive need of a target
type Phase string

const (
	PhaseIneligible Phase = "ineligible"
	PhaseWeaken     Phase = "weaken"
	PhaseGrow       Phase = "grow"
	PhaseHack       Phase = "hack"
)

const (
	// WeakenPerReplica is how much one weaken replica lowers the level on a single core
	WeakenPerReplica = 0.05

	// HackShare is the fraction of spare fleet replicas handed to hack waves
	HackShare = 0.95
)

// Classify derives the phase from the target's live attributes.
// Weaken dominates: any level above the minimum rules out grow and hack.
func Classify(t types.Target) Phase {
	switch {
	case !t.Rooted || t.MaxValue <= 0:
		return PhaseIneligible
	case t.Level < t.MinLevel || t.Value < 0 || t.Value > t.MaxValue:
		return PhaseIneligible
	case t.Level > t.MinLevel:
		return PhaseWeaken
	case t.Value < t.MaxValue:
		return PhaseGrow
	default:
		return PhaseHack
	}
}

// CoreBonus is the per-replica effect multiplier from the target's cores
func CoreBonus(cores int) float64 {
	if cores < 1 {
		cores = 1
	}
	return 1 + float64(cores-1)/16
}

// WeakenReplicas returns how many weaken replicas bring the level to its minimum
func WeakenReplicas(t types.Target) int {
	excess := t.Level - t.MinLevel
	if excess <= 0 {
		return 0
	}
	return int(math.Ceil(excess / (WeakenPerReplica * CoreBonus(t.Cores))))
}

// GrowthMultiplier is the factor the value must grow by to reach its maximum
func GrowthMultiplier(t types.Target) float64 {
	return t.MaxValue / (t.Value + 1)
}

// GrowthFunc returns the replicas needed to multiply a target's value by multiplier
type GrowthFunc func(t types.Target, multiplier float64) (float64, error)

// GrowReplicas returns how many grow replicas bring the value to its maximum
func GrowReplicas(t types.Target, growth GrowthFunc) (int, error) {
	if t.Value >= t.MaxValue {
		return 0, nil
	}
	replicas, err := growth(t, GrowthMultiplier(t))
	if err != nil {
		return 0, fmt.Errorf("failed to compute growth for %s: %w", t.ID, err)
	}
	if replicas <= 0 || math.IsNaN(replicas) {
		return 0, nil
	}
	return int(math.Ceil(replicas)), nil
}

// HackReplicas splits spare fleet replicas evenly across hackable targets
func HackReplicas(spareReplicas float64, hackableTargets int) int {
	if hackableTargets <= 0 || spareReplicas <= 0 {
		return 0
	}
	return int(math.Floor(HackShare * spareReplicas / float64(hackableTargets)))
}
