package provision

import (
	"context"
	"fmt"
	"testing"

	"github.com/cuemby/burrow/pkg/action"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/fleet/fleettest"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMarket prices capacity at 100 per unit and adds bought nodes to the driver
type fakeMarket struct {
	d       *fleettest.Driver
	limit   int
	max     float64
	bought  int
	deleted []string
}

func (m *fakeMarket) PurchaseLimit(context.Context) (int, error)   { return m.limit, nil }
func (m *fakeMarket) MaxCapacity(context.Context) (float64, error) { return m.max, nil }
func (m *fakeMarket) PurchaseCost(_ context.Context, capacity float64) (float64, error) {
	return capacity * 100, nil
}

func (m *fakeMarket) Purchase(_ context.Context, name string, capacity float64) (string, error) {
	id := fmt.Sprintf("%s-%d", name, 10+m.bought)
	m.bought++
	m.d.AddNode(types.NodeRecord{ID: id, TotalCapacity: capacity, Ownership: types.OwnershipPurchased, Rooted: true})
	return id, nil
}

func (m *fakeMarket) Delete(_ context.Context, id string) (bool, error) {
	m.deleted = append(m.deleted, id)
	m.d.RemoveNode(id)
	return true, nil
}

func purchased(id string, capacity float64, staged ...string) types.NodeRecord {
	return types.NodeRecord{ID: id, TotalCapacity: capacity, Ownership: types.OwnershipPurchased, Rooted: true, Staged: staged}
}

func newEnv(t *testing.T, d *fleettest.Driver, spend bool) *action.Env {
	t.Helper()
	cfg := config.Default()
	cfg.SpendMoney = spend
	env := action.NewEnv(d, cfg, zerolog.Nop())
	require.NoError(t, env.Refresh(context.Background()))
	return env
}

func TestSizes(t *testing.T) {
	m := &fakeMarket{max: 64}
	sizes, err := Sizes(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, sizes, 4)
	assert.Equal(t, 8.0, sizes[0].Capacity)
	assert.Equal(t, 64.0, sizes[3].Capacity)
	assert.Equal(t, 6400.0, sizes[3].Cost)
}

func TestEvaluate(t *testing.T) {
	d := fleettest.New().
		AddNode(purchased("pserv-0", 8)).
		AddNode(purchased("pserv-1", 32)).
		AddNode(purchased("pserv-2", 1024)).
		SetAccount(types.Account{Money: 10_010_000})
	m := &fakeMarket{d: d, limit: 3, max: 1024}

	st, err := Evaluate(context.Background(), newEnv(t, d, true), m)
	require.NoError(t, err)

	assert.Equal(t, 0, st.SlotsAvailable)
	require.NotNil(t, st.MaxAffordable)
	assert.Equal(t, 64.0, st.MaxAffordable.Capacity)
	assert.Equal(t, []string{"pserv-2"}, st.Maxed)

	// pserv-1 only gains one doubling, below the default minimum of two
	require.Len(t, st.Upgrades, 1)
	assert.Equal(t, "pserv-0", st.Upgrades[0].NodeID)
	assert.InDelta(t, 3.0, st.Upgrades[0].Jump, 1e-9)
}

func TestPurchaseAction(t *testing.T) {
	d := fleettest.New().
		AddNode(purchased("pserv-0", 8)).
		SetAccount(types.Account{Money: 10_010_000})
	m := &fakeMarket{d: d, limit: 3, max: 1024}
	a := NewPurchaseAction(m)

	ok, err := a.Actionable(context.Background(), newEnv(t, d, false))
	require.NoError(t, err)
	assert.False(t, ok, "spending not approved")

	env := newEnv(t, d, true)
	ok, err = a.Actionable(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := a.Perform(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "pserv-10", res.Tasks[0].Node)

	n, err := d.Node(context.Background(), "pserv-10")
	require.NoError(t, err)
	assert.Equal(t, 64.0, n.TotalCapacity)
}

func TestPurchaseNotAffordable(t *testing.T) {
	d := fleettest.New().SetAccount(types.Account{Money: 10_000_500})
	a := NewPurchaseAction(&fakeMarket{d: d, limit: 3, max: 1024})

	ok, err := a.Actionable(context.Background(), newEnv(t, d, true))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkForUpgradeAction(t *testing.T) {
	d := fleettest.New().
		AddNode(purchased("pserv-0", 8)).
		AddNode(purchased("pserv-1", 32)).
		SetAccount(types.Account{Money: 10_010_000})
	m := &fakeMarket{d: d, limit: 2, max: 1024}
	a := NewMarkForUpgradeAction(m)
	env := newEnv(t, d, true)

	ok, err := a.Actionable(context.Background(), env)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := a.Perform(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"pserv-0:upgrade.lock"}, d.Staged)

	// Only one node is marked at a time
	require.NoError(t, env.Refresh(context.Background()))
	ok, err = a.Actionable(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkNotActionableWithFreeSlots(t *testing.T) {
	d := fleettest.New().
		AddNode(purchased("pserv-0", 8)).
		SetAccount(types.Account{Money: 10_010_000})
	a := NewMarkForUpgradeAction(&fakeMarket{d: d, limit: 2, max: 1024})

	ok, err := a.Actionable(context.Background(), newEnv(t, d, true))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveMarkedAction(t *testing.T) {
	d := fleettest.New().
		SetCost("weaken", 1).
		AddNode(purchased("pserv-0", 8, "upgrade.lock")).
		AddNode(purchased("pserv-1", 8, "upgrade.lock")).
		AddNode(purchased("pserv-2", 8)).
		AddProcess("pserv-1", types.Process{Operation: "weaken", Args: []string{"sigma"}, Replicas: 2})
	m := &fakeMarket{d: d, limit: 3, max: 1024}
	a := NewRemoveMarkedAction(m)

	ok, err := a.Actionable(context.Background(), newEnv(t, d, false))
	require.NoError(t, err)
	assert.False(t, ok)

	env := newEnv(t, d, true)
	ok, err = a.Actionable(context.Background(), env)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := a.Perform(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"pserv-0"}, m.deleted)
}
