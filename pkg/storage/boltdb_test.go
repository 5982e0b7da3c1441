package storage

import (
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStoreNodes(t *testing.T) {
	s := newTestStore(t)

	node := &types.NodeRecord{ID: "home", TotalCapacity: 64, Ownership: types.OwnershipLocal, Rooted: true, Staged: []string{"hacking"}}
	require.NoError(t, s.CreateNode(node))

	got, err := s.GetNode("home")
	require.NoError(t, err)
	assert.Equal(t, node, got)

	got.Staged = append(got.Staged, "provision")
	require.NoError(t, s.UpdateNode(got))

	nodes, err := s.ListNodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, []string{"hacking", "provision"}, nodes[0].Staged)

	require.NoError(t, s.DeleteNode("home"))
	_, err = s.GetNode("home")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestBoltStoreTargetsAndCosts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateTarget(&types.Target{ID: "sigma", Level: 10, MinLevel: 3, MaxValue: 100}))
	got, err := s.GetTarget("sigma")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Level)

	_, err = s.GetTarget("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, s.SetCost("weaken", 1.75))
	cost, err := s.GetCost("weaken")
	require.NoError(t, err)
	assert.Equal(t, 1.75, cost)

	_, err = s.GetCost("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestBoltStoreProcesses(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	require.NoError(t, s.CreateProcess(&ProcessRecord{ID: "b", NodeID: "n1", Process: types.Process{Operation: "grow", StartedAt: now.Add(time.Second)}}))
	require.NoError(t, s.CreateProcess(&ProcessRecord{ID: "a", NodeID: "n2", Process: types.Process{Operation: "weaken", StartedAt: now}}))
	require.NoError(t, s.CreateProcess(&ProcessRecord{ID: "c", NodeID: "n1", Process: types.Process{Operation: "hack", StartedAt: now.Add(2 * time.Second)}}))

	all, err := s.ListProcesses()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "weaken", all[0].Process.Operation, "oldest first")

	onN1, err := s.ListProcessesByNode("n1")
	require.NoError(t, err)
	assert.Len(t, onN1, 2)

	require.NoError(t, s.DeleteProcess("b"))
	onN1, err = s.ListProcessesByNode("n1")
	require.NoError(t, err)
	assert.Len(t, onN1, 1)
}

func TestBoltStoreAccount(t *testing.T) {
	s := newTestStore(t)

	empty, err := s.GetAccount()
	require.NoError(t, err)
	assert.Zero(t, empty.Money)

	require.NoError(t, s.SaveAccount(&types.Account{Money: 42, Skill: 7, PortOpeners: 2}))
	a, err := s.GetAccount()
	require.NoError(t, err)
	assert.Equal(t, types.Account{Money: 42, Skill: 7, PortOpeners: 2}, *a)
}

func TestBoltStoreLogPort(t *testing.T) {
	s := newTestStore(t)

	for _, line := range []string{"one", "two", "three"} {
		require.NoError(t, s.AppendLog([]byte(line)))
	}

	lines, err := s.DrainLog()
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "one", string(lines[0]))
	assert.Equal(t, "three", string(lines[2]))

	lines, err = s.DrainLog()
	require.NoError(t, err)
	assert.Empty(t, lines)
}
