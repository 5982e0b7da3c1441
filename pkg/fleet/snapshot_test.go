package fleet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/burrow/pkg/fleet"
	"github.com/cuemby/burrow/pkg/fleet/fleettest"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver() *fleettest.Driver {
	return fleettest.New().
		SetCost("weaken", 1.75).
		AddNode(types.NodeRecord{ID: "home", TotalCapacity: 64, Ownership: types.OwnershipLocal, Rooted: true}).
		AddNode(types.NodeRecord{ID: "n00dles", TotalCapacity: 4, Ownership: types.OwnershipExternal, Rooted: true}).
		AddNode(types.NodeRecord{ID: "foodnstuff", TotalCapacity: 16, Ownership: types.OwnershipExternal}).
		AddNode(types.NodeRecord{ID: "pserv-1", TotalCapacity: 32, Ownership: types.OwnershipPurchased, Rooted: true}).
		AddNode(types.NodeRecord{ID: "pserv-0", TotalCapacity: 32, Ownership: types.OwnershipPurchased, Rooted: true, Staged: []string{"upgrade.lock"}}).
		AddNode(types.NodeRecord{ID: "pserv-2", TotalCapacity: 8, Ownership: types.OwnershipPurchased, Rooted: true})
}

func ids(nodes []types.NodeRecord) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestSnapshotRefresh(t *testing.T) {
	ctx := context.Background()
	d := newDriver()
	d.AddProcess("home", types.Process{Operation: "weaken", Args: []string{"joesguns"}, Replicas: 4})

	snap := fleet.NewSnapshot(d)
	assert.Empty(t, snap.Nodes())

	require.NoError(t, snap.Refresh(ctx))
	assert.Equal(t, []string{"foodnstuff", "home", "n00dles", "pserv-0", "pserv-1", "pserv-2"}, ids(snap.Nodes()))

	home, ok := snap.Node("home")
	require.True(t, ok)
	assert.InDelta(t, 7.0, home.UsedCapacity, 1e-9)
	assert.Len(t, snap.Processes("home"), 1)
}

func TestSnapshotRefreshFailure(t *testing.T) {
	d := newDriver()
	snap := fleet.NewSnapshot(d)
	require.NoError(t, snap.Refresh(context.Background()))

	d.NodesErr = errors.New("scan failed")
	err := snap.Refresh(context.Background())
	assert.ErrorIs(t, err, types.ErrSnapshotUnavailable)

	// The previous view survives a failed refresh
	assert.Len(t, snap.Nodes(), 6)
}

func TestSnapshotRefreshNode(t *testing.T) {
	ctx := context.Background()
	d := newDriver()
	snap := fleet.NewSnapshot(d)
	require.NoError(t, snap.Refresh(ctx))

	ok, err := d.Launch(ctx, "weaken", "pserv-1", 4, []string{"joesguns"})
	require.NoError(t, err)
	require.True(t, ok)

	stale, _ := snap.Node("pserv-1")
	assert.Zero(t, stale.UsedCapacity)

	require.NoError(t, snap.RefreshNode(ctx, "pserv-1"))
	fresh, _ := snap.Node("pserv-1")
	assert.InDelta(t, 7.0, fresh.UsedCapacity, 1e-9)
	assert.Len(t, snap.Processes("pserv-1"), 1)

	err = snap.RefreshNode(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrSnapshotUnavailable)
}

func TestSnapshotUsableAndPurchased(t *testing.T) {
	snap := fleet.NewSnapshot(newDriver())
	require.NoError(t, snap.Refresh(context.Background()))

	// foodnstuff is not rooted, pserv-0 is draining
	assert.Equal(t, []string{"home", "n00dles", "pserv-1", "pserv-2"}, ids(snap.Usable("upgrade.lock")))

	// Capacity first, ID on ties
	assert.Equal(t, []string{"pserv-2", "pserv-0", "pserv-1"}, ids(snap.Purchased()))
}

func TestSnapshotSearch(t *testing.T) {
	d := newDriver().
		AddProcess("home", types.Process{Operation: "weaken", Args: []string{"joesguns"}, Replicas: 4}).
		AddProcess("pserv-1", types.Process{Operation: "weaken", Args: []string{"joesguns"}, Replicas: 6}).
		AddProcess("pserv-1", types.Process{Operation: "weaken", Args: []string{"sigma"}, Replicas: 2}).
		AddProcess("pserv-2", types.Process{Operation: "grow", Args: []string{"joesguns"}, Replicas: 1})

	snap := fleet.NewSnapshot(d)
	require.NoError(t, snap.Refresh(context.Background()))
	nodes := snap.Nodes()

	assert.Equal(t, 10, snap.Replicas(nodes, "weaken", []string{"joesguns"}))
	assert.Equal(t, 12, snap.Replicas(nodes, "weaken", nil))
	assert.Len(t, snap.Search(nodes, "", []string{"joesguns"}), 3)
	assert.Empty(t, snap.Search(nodes, "hack", nil))

	total, used := fleet.Capacity(nodes)
	assert.Equal(t, 156.0, total)
	assert.Greater(t, used, 0.0)
}
