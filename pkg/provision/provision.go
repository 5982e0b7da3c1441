// Package provision buys, marks and removes purchased nodes so the fleet
// grows in large capacity jumps while money allows.
package provision

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cuemby/burrow/pkg/action"
)

// Smallest purchasable size is 2^minSizeExponent
const minSizeExponent = 3

// Market sells and deletes purchased nodes
type Market interface {
	// PurchaseLimit is the maximum number of purchased nodes
	PurchaseLimit(ctx context.Context) (int, error)

	// MaxCapacity is the largest purchasable capacity
	MaxCapacity(ctx context.Context) (float64, error)

	// PurchaseCost is the price of a node with the given capacity
	PurchaseCost(ctx context.Context, capacity float64) (float64, error)

	// Purchase buys a node and returns its ID, or "" when refused
	Purchase(ctx context.Context, name string, capacity float64) (string, error)

	// Delete removes a purchased node
	Delete(ctx context.Context, id string) (bool, error)
}

// Size is one purchasable capacity and its price
type Size struct {
	Capacity float64
	Cost     float64
}

// Upgrade is a purchased node that could be replaced by a bigger one
type Upgrade struct {
	NodeID   string
	Capacity float64
	Next     Size

	// Jump is the number of capacity doublings the replacement brings
	Jump float64
}

// Status is the provisioning view of the fleet at one point in time
type Status struct {
	Limit          int
	SlotsAvailable int
	MaxCapacity    float64
	MaxAffordable  *Size
	Maxed          []string
	Marked         []string
	Upgrades       []Upgrade
}

// Sizes lists the purchasable sizes, powers of two from 8 to the market maximum
func Sizes(ctx context.Context, m Market) ([]Size, error) {
	maxCap, err := m.MaxCapacity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read max capacity: %w", err)
	}
	var sizes []Size
	for exp := minSizeExponent; math.Pow(2, float64(exp)) <= maxCap; exp++ {
		capacity := math.Pow(2, float64(exp))
		cost, err := m.PurchaseCost(ctx, capacity)
		if err != nil {
			return nil, fmt.Errorf("failed to price %v: %w", capacity, err)
		}
		sizes = append(sizes, Size{Capacity: capacity, Cost: cost})
	}
	return sizes, nil
}

// Evaluate computes the provisioning status from a refreshed environment
func Evaluate(ctx context.Context, env *action.Env, m Market) (Status, error) {
	limit, err := m.PurchaseLimit(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read purchase limit: %w", err)
	}
	maxCap, err := m.MaxCapacity(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read max capacity: %w", err)
	}
	sizes, err := Sizes(ctx, m)
	if err != nil {
		return Status{}, err
	}

	purchased := env.Fleet.Purchased()
	st := Status{
		Limit:          limit,
		SlotsAvailable: limit - len(purchased),
		MaxCapacity:    maxCap,
	}

	spendable := env.Spendable()
	for i := range sizes {
		if spendable > sizes[i].Cost {
			s := sizes[i]
			st.MaxAffordable = &s
		}
	}

	for _, n := range purchased {
		if n.HasStaged(env.Config.UpgradeMarker) {
			st.Marked = append(st.Marked, n.ID)
		}
		if n.TotalCapacity >= maxCap {
			st.Maxed = append(st.Maxed, n.ID)
			continue
		}

		u := Upgrade{NodeID: n.ID, Capacity: n.TotalCapacity}
		if st.MaxAffordable != nil && n.TotalCapacity < st.MaxAffordable.Capacity {
			u.Next = *st.MaxAffordable
			u.Jump = math.Log2(st.MaxAffordable.Capacity) - math.Log2(n.TotalCapacity)
		}
		if u.Jump >= float64(env.Config.MinUpgradeJump) {
			st.Upgrades = append(st.Upgrades, u)
		}
	}

	// Biggest jump first: deleted nodes are not refunded
	sort.SliceStable(st.Upgrades, func(i, j int) bool {
		return st.Upgrades[i].Jump > st.Upgrades[j].Jump
	})
	return st, nil
}
