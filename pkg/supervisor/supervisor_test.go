package supervisor

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/fleet/fleettest"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTransport struct {
	mu    sync.Mutex
	lines [][]byte
}

func (m *memTransport) Emit(ctx context.Context, line []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, line)
	return nil
}

func (m *memTransport) Drain(ctx context.Context) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.lines
	m.lines = nil
	return out, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.TickInterval = 10 * time.Millisecond
	return cfg
}

func hostDriver(staged ...string) *fleettest.Driver {
	return fleettest.New().
		SetCost("hacking", 4).
		SetCost("provision", 2).
		AddNode(types.NodeRecord{ID: "home", TotalCapacity: 32, Ownership: types.OwnershipLocal, Rooted: true, Staged: staged})
}

func TestTickSkips(t *testing.T) {
	tests := []struct {
		name   string
		driver func() *fleettest.Driver
		cfg    func(*config.Config)
		reason string
	}{
		{
			name:   "disabled",
			driver: func() *fleettest.Driver { return hostDriver("hacking") },
			cfg:    func(c *config.Config) { c.DisabledOperations = []string{"hacking"} },
			reason: "disabled",
		},
		{
			name: "host missing",
			driver: func() *fleettest.Driver {
				d := hostDriver("hacking")
				d.RemoveNode("home")
				return d
			},
			reason: "host missing",
		},
		{
			name:   "not staged",
			driver: func() *fleettest.Driver { return hostDriver() },
			reason: "not staged",
		},
		{
			name: "already running",
			driver: func() *fleettest.Driver {
				return hostDriver("hacking").AddProcess("home", types.Process{Operation: "hacking", Replicas: 1})
			},
			reason: types.ErrAlreadyRunning.Error(),
		},
		{
			name: "insufficient capacity",
			driver: func() *fleettest.Driver {
				d := hostDriver("hacking")
				d.UpdateNode("home", func(n *types.NodeRecord) { n.UsedCapacity = 30 })
				return d
			},
			reason: "insufficient capacity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			d := tt.driver()
			s := NewSupervisor(d, cfg, []Module{{Operation: "hacking", Replicas: 1, Timeout: time.Second}}, nil, nil)

			results := s.Tick(context.Background())
			require.Len(t, results, 1)
			assert.Equal(t, OutcomeSkipped, results[0].Outcome)
			assert.Equal(t, tt.reason, results[0].Reason)
			assert.Zero(t, d.LaunchCount())
		})
	}
}

func TestTickTerminatesOverrunningModuleOnce(t *testing.T) {
	d := hostDriver("hacking")
	s := NewSupervisor(d, testConfig(), []Module{{Operation: "hacking", Replicas: 1, Timeout: 30 * time.Millisecond}}, nil, nil)

	results := s.Tick(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeTerminated, results[0].Outcome)
	assert.Contains(t, results[0].Reason, types.ErrTimeout.Error())
	assert.GreaterOrEqual(t, results[0].Duration, 30*time.Millisecond)

	assert.Equal(t, 1, d.LaunchCount())
	assert.Equal(t, 1, d.TerminateCount())
	assert.True(t, d.Terminated[0].OK)
}

func TestTickWaitsForExit(t *testing.T) {
	d := hostDriver("hacking", "provision")
	s := NewSupervisor(d, testConfig(), []Module{
		{Operation: "hacking", Replicas: 1, Timeout: 5 * time.Second},
		{Operation: "provision", Replicas: 1},
	}, nil, nil)

	// Each module exits shortly after it is launched
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, op := range []string{"hacking", "provision"} {
			for {
				procs, _ := d.Processes(context.Background(), "home")
				if len(procs) > 0 && procs[0].Operation == op {
					break
				}
				time.Sleep(time.Millisecond)
			}
			time.Sleep(10 * time.Millisecond)
			d.Finish(op, "home")
		}
	}()

	results := s.Tick(context.Background())
	<-done

	require.Len(t, results, 2)
	assert.Equal(t, OutcomeCompleted, results[0].Outcome)
	assert.Equal(t, OutcomeCompleted, results[1].Outcome)
	assert.Zero(t, d.TerminateCount())

	// Launches are strictly sequential
	require.Len(t, d.Launches, 2)
	assert.Equal(t, "hacking", d.Launches[0].Operation)
	assert.Equal(t, "provision", d.Launches[1].Operation)
}

func TestTickLaunchRefused(t *testing.T) {
	d := hostDriver("hacking")
	d.RefuseLaunch = func(string, string, []string) bool { return true }
	s := NewSupervisor(d, testConfig(), []Module{{Operation: "hacking", Replicas: 1, Timeout: time.Second}}, nil, nil)

	results := s.Tick(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeLaunchFailed, results[0].Outcome)
	assert.Zero(t, d.TerminateCount())
}

func TestTickNeverDoubleLaunches(t *testing.T) {
	d := hostDriver("hacking")
	s := NewSupervisor(d, testConfig(), []Module{{Operation: "hacking", Replicas: 1, Timeout: time.Minute}}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Interrupted while watching: the instance stays up
	results := s.Tick(ctx)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeInterrupted, results[0].Outcome)

	// The next tick sees it running and leaves it alone
	results = s.Tick(context.Background())
	assert.Equal(t, OutcomeSkipped, results[0].Outcome)
	assert.Equal(t, types.ErrAlreadyRunning.Error(), results[0].Reason)
	assert.Equal(t, 1, d.LaunchCount())
}

func TestTickRetriesFailedTerminate(t *testing.T) {
	d := hostDriver("hacking")
	refusals := 1
	d.RefuseTerminate = func(string, string, []string) bool {
		refusals--
		return refusals >= 0
	}
	s := NewSupervisor(d, testConfig(), []Module{{Operation: "hacking", Replicas: 1, Timeout: 20 * time.Millisecond}}, nil, nil)
	ctx := context.Background()

	// The module survives the first terminate
	results := s.Tick(ctx)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeOverrun, results[0].Outcome)
	assert.Equal(t, types.ErrTerminateFailed.Error(), results[0].Reason)
	running, err := d.Processes(ctx, "home")
	require.NoError(t, err)
	assert.Len(t, running, 1)

	// The next tick finds it still overrunning and kills it without relaunching
	results = s.Tick(ctx)
	assert.Equal(t, OutcomeTerminated, results[0].Outcome)
	assert.GreaterOrEqual(t, results[0].Duration, 20*time.Millisecond)
	assert.Equal(t, 1, d.LaunchCount())
	assert.Equal(t, 2, d.TerminateCount())
	running, err = d.Processes(ctx, "home")
	require.NoError(t, err)
	assert.Empty(t, running)

	// Once gone it is eligible again
	results = s.Tick(ctx)
	assert.Equal(t, OutcomeTerminated, results[0].Outcome)
	assert.Equal(t, 2, d.LaunchCount())
}

func TestTickTerminatesStaleInstance(t *testing.T) {
	tests := []struct {
		name       string
		age        time.Duration
		outcome    Outcome
		terminates int
	}{
		{name: "overran before we saw it", age: time.Hour, outcome: OutcomeTerminated, terminates: 1},
		{name: "within its timeout", age: time.Millisecond, outcome: OutcomeSkipped, terminates: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := hostDriver("hacking").AddProcess("home", types.Process{
				Operation: "hacking",
				Replicas:  1,
				StartedAt: time.Now().Add(-tt.age),
			})
			s := NewSupervisor(d, testConfig(), []Module{{Operation: "hacking", Replicas: 1, Timeout: time.Minute}}, nil, nil)

			results := s.Tick(context.Background())
			require.Len(t, results, 1)
			assert.Equal(t, tt.outcome, results[0].Outcome)
			assert.Equal(t, tt.terminates, d.TerminateCount())
			assert.Zero(t, d.LaunchCount())
		})
	}
}

func TestTickRelaysModuleLogs(t *testing.T) {
	var out bytes.Buffer
	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: &out, Buffered: true})
	defer log.Init(log.Config{Level: log.InfoLevel, Output: &bytes.Buffer{}})

	transport := &memTransport{}
	require.NoError(t, transport.Emit(context.Background(), []byte(`{"level":"info","message":"from module"}`)))

	d := hostDriver("hacking")
	s := NewSupervisor(d, testConfig(), []Module{{Operation: "hacking", Replicas: 1, Timeout: 15 * time.Millisecond}}, transport, nil)
	s.Tick(context.Background())

	assert.Contains(t, out.String(), "from module")
	assert.Contains(t, out.String(), "Terminating module")
}
