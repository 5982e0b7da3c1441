package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/action"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/fleet/fleettest"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAction records how the scheduler drives it
type fakeAction struct {
	action.Base
	actionable bool
	perform    func(ctx context.Context, env *action.Env) (action.Result, error)

	actionableCalls int
	priorityCalls   int
	performCalls    int
	log             *[]string
}

func (f *fakeAction) Priority(ctx context.Context, env *action.Env) (int, error) {
	f.priorityCalls++
	return f.Base.Priority(ctx, env)
}

func (f *fakeAction) Actionable(context.Context, *action.Env) (bool, error) {
	f.actionableCalls++
	return f.actionable, nil
}

func (f *fakeAction) Perform(ctx context.Context, env *action.Env) (action.Result, error) {
	f.performCalls++
	if f.log != nil {
		*f.log = append(*f.log, f.Name())
	}
	if f.perform != nil {
		return f.perform(ctx, env)
	}
	return action.NewResult(f.Name()), nil
}

func newFake(name string, priority int, actionable bool, log *[]string) *fakeAction {
	return &fakeAction{
		Base:       action.Base{ActionName: name, StaticPriority: priority},
		actionable: actionable,
		log:        log,
	}
}

func newTestScheduler(t *testing.T, d *fleettest.Driver, actions ...action.Action) *Scheduler {
	t.Helper()
	env := action.NewEnv(d, config.Default(), zerolog.Nop())
	return NewScheduler("test", env, actions, nil)
}

func testDriver() *fleettest.Driver {
	return fleettest.New().
		AddNode(types.NodeRecord{ID: "home", TotalCapacity: 64, Ownership: types.OwnershipLocal, Rooted: true})
}

func TestTickRunsLowestPriorityBatch(t *testing.T) {
	var order []string
	a := newFake("A", 5, true, &order)
	b := newFake("B", 5, true, &order)
	c := newFake("C", 1, false, &order)
	d := newFake("D", 9, true, &order)

	s := newTestScheduler(t, testDriver(), a, b, c, d)
	report, err := s.Tick(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Idle)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, []string{"A", "B"}, order)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "A", report.Results[0].Action)
	assert.True(t, report.Results[0].Success)

	// Priority is only asked of actionable actions
	assert.Zero(t, c.priorityCalls)
	assert.Equal(t, 1, a.priorityCalls)
	assert.Zero(t, d.performCalls)
}

func TestTickIdle(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	a := newFake("A", 1, false, nil)
	env := action.NewEnv(testDriver(), config.Default(), zerolog.Nop())
	s := NewScheduler("test", env, []action.Action{a}, broker)

	report, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Idle)
	assert.Empty(t, report.Results)

	select {
	case ev := <-sub:
		assert.Equal(t, events.EventTickIdle, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("idle event not published")
	}
}

func TestTickSnapshotUnavailable(t *testing.T) {
	d := testDriver()
	d.NodesErr = errors.New("scan failed")
	a := newFake("A", 1, true, nil)

	report, err := newTestScheduler(t, d, a).Tick(context.Background())
	assert.ErrorIs(t, err, types.ErrSnapshotUnavailable)
	assert.True(t, report.Idle)
	assert.Zero(t, a.actionableCalls)
}

func TestTickRechecksActionableBetweenBatchMembers(t *testing.T) {
	var order []string
	b := newFake("B", 3, true, &order)
	a := newFake("A", 3, true, &order)
	a.perform = func(ctx context.Context, env *action.Env) (action.Result, error) {
		b.actionable = false
		return action.NewResult("A"), nil
	}

	report, err := newTestScheduler(t, testDriver(), a, b).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, order)
	assert.Len(t, report.Results, 1)
	assert.Equal(t, 2, b.actionableCalls)
}

func TestTickRefreshesBetweenBatchMembers(t *testing.T) {
	d := testDriver()
	var seen int
	a := newFake("A", 1, true, nil)
	a.perform = func(ctx context.Context, env *action.Env) (action.Result, error) {
		d.AddNode(types.NodeRecord{ID: "pserv-0", TotalCapacity: 8, Ownership: types.OwnershipPurchased, Rooted: true})
		return action.NewResult("A"), nil
	}
	b := newFake("B", 1, true, nil)
	b.perform = func(ctx context.Context, env *action.Env) (action.Result, error) {
		seen = len(env.Fleet.Nodes())
		return action.NewResult("B"), nil
	}

	_, err := newTestScheduler(t, d, a, b).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
}

func TestTickIsolatesFailures(t *testing.T) {
	tests := []struct {
		name    string
		perform func(context.Context, *action.Env) (action.Result, error)
	}{
		{
			name: "error",
			perform: func(context.Context, *action.Env) (action.Result, error) {
				return action.Result{}, errors.New("driver went away")
			},
		},
		{
			name: "panic",
			perform: func(context.Context, *action.Env) (action.Result, error) {
				panic("nil target")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order []string
			a := newFake("A", 1, true, &order)
			a.perform = tt.perform
			b := newFake("B", 1, true, &order)

			report, err := newTestScheduler(t, testDriver(), a, b).Tick(context.Background())
			require.NoError(t, err)
			require.Len(t, report.Results, 2)

			assert.False(t, report.Results[0].Success)
			assert.Error(t, report.Results[0].Err)
			assert.Equal(t, "A", report.Results[0].Action)
			assert.True(t, report.Results[1].Success)
			assert.Equal(t, []string{"A", "B"}, order)
		})
	}
}

func TestEvaluate(t *testing.T) {
	a := newFake("A", 5, true, nil)
	c := newFake("C", 1, false, nil)

	evals, err := newTestScheduler(t, testDriver(), a, c).Evaluate(context.Background())
	require.NoError(t, err)
	require.Len(t, evals, 2)
	assert.True(t, evals[0].Actionable)
	assert.Equal(t, 5, evals[0].Priority)
	assert.False(t, evals[1].Actionable)
	assert.Zero(t, a.performCalls)
}

func TestSelectBatch(t *testing.T) {
	a := newFake("A", 2, true, nil)
	b := newFake("B", 1, true, nil)
	c := newFake("C", 1, true, nil)

	tests := []struct {
		name  string
		evals []Evaluation
		want  []string
	}{
		{name: "empty", evals: nil, want: nil},
		{
			name: "none actionable",
			evals: []Evaluation{
				{Action: a, Priority: 2},
			},
			want: nil,
		},
		{
			name: "ties keep registration order",
			evals: []Evaluation{
				{Action: a, Actionable: true, Priority: 2},
				{Action: c, Actionable: true, Priority: 1},
				{Action: b, Actionable: true, Priority: 1},
			},
			want: []string{"C", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, a := range selectBatch(tt.evals) {
				got = append(got, a.Name())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	a := newFake("A", 1, false, nil)
	s := newTestScheduler(t, testDriver(), a)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 10*time.Millisecond) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
