package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/botnet"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/target"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Effect sizes applied when a replica finishes
const (
	// GrowLevelPerReplica is the level each grow replica adds
	GrowLevelPerReplica = 0.004

	// HackLevelPerReplica is the level each hack replica adds
	HackLevelPerReplica = 0.002

	// HackFractionPerReplica is the share of current value one hack replica takes
	HackFractionPerReplica = 0.002
)

// ModuleFunc is the body of a module process. It runs until it returns or
// its context is cancelled by Terminate.
type ModuleFunc func(ctx context.Context) error

// World is a simulated fleet persisted in a Store. Attack replicas finish
// after a fixed lifetime and then apply their effect to the target; module
// processes run registered functions in their own goroutine.
type World struct {
	mu      sync.Mutex
	store   Store
	market  MarketSeed
	ttl     time.Duration
	now     func() time.Time
	modules map[string]ModuleFunc
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
	logger  zerolog.Logger
}

// NewWorld creates a world on top of store. Attack replicas live for ttl.
func NewWorld(store Store, ttl time.Duration) *World {
	return &World{
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		modules: make(map[string]ModuleFunc),
		cancels: make(map[string]context.CancelFunc),
		logger:  log.WithComponent("world"),
	}
}

// SetClock replaces the world's time source
func (w *World) SetClock(now func() time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = now
}

// RegisterModule makes launches of op run fn instead of a timed replica
func (w *World) RegisterModule(op string, fn ModuleFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.modules[op] = fn
}

// Load writes a seed into the store
func (w *World) Load(seed *Seed) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.market = seed.Market
	for op, cost := range seed.Costs {
		if err := w.store.SetCost(op, cost); err != nil {
			return fmt.Errorf("failed to store cost of %s: %w", op, err)
		}
	}
	for _, n := range seed.Nodes {
		if err := w.store.CreateNode(n.record()); err != nil {
			return fmt.Errorf("failed to store node %s: %w", n.ID, err)
		}
	}
	for _, t := range seed.Targets {
		if err := w.store.CreateTarget(t.target()); err != nil {
			return fmt.Errorf("failed to store target %s: %w", t.ID, err)
		}
	}
	account := types.Account{
		Money:       seed.Account.Money,
		Skill:       seed.Account.Skill,
		PortOpeners: seed.Account.PortOpeners,
	}
	return w.store.SaveAccount(&account)
}

// Wait blocks until every module goroutine has returned
func (w *World) Wait() {
	w.wg.Wait()
}

// Shutdown cancels every running module and waits for them to return.
// Their processes are removed as they exit.
func (w *World) Shutdown() {
	w.mu.Lock()
	for _, cancel := range w.cancels {
		cancel()
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Reap removes module processes persisted by an earlier run. Module bodies
// live in this process, so a record without a running body is stale.
// It returns the number of removed records.
func (w *World) Reap() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	records, err := w.store.ListProcesses()
	if err != nil {
		return 0, err
	}
	reaped := 0
	for _, r := range records {
		if !r.ExpiresAt.IsZero() {
			continue
		}
		if _, live := w.cancels[r.ID]; live {
			continue
		}
		if err := w.store.DeleteProcess(r.ID); err != nil {
			return reaped, fmt.Errorf("failed to remove stale module %s: %w", r.Process.Operation, err)
		}
		w.logger.Info().Str("module", r.Process.Operation).Str("node", r.NodeID).Msg("Removed stale module process")
		reaped++
	}
	return reaped, nil
}

// Nodes implements fleet.NodeSource
func (w *World) Nodes(ctx context.Context) ([]types.NodeRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.expire(); err != nil {
		return nil, err
	}
	records, err := w.store.ListNodes()
	if err != nil {
		return nil, err
	}
	used, err := w.usage()
	if err != nil {
		return nil, err
	}

	nodes := make([]types.NodeRecord, 0, len(records))
	for _, n := range records {
		n.UsedCapacity = used[n.ID]
		nodes = append(nodes, *n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

// Node implements fleet.NodeSource
func (w *World) Node(ctx context.Context, id string) (types.NodeRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.expire(); err != nil {
		return types.NodeRecord{}, err
	}
	n, err := w.node(id)
	if err != nil {
		return types.NodeRecord{}, err
	}
	return *n, nil
}

// Processes implements fleet.NodeSource
func (w *World) Processes(ctx context.Context, nodeID string) ([]types.Process, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.expire(); err != nil {
		return nil, err
	}
	records, err := w.store.ListProcessesByNode(nodeID)
	if err != nil {
		return nil, err
	}
	procs := make([]types.Process, 0, len(records))
	for _, r := range records {
		procs = append(procs, r.Process)
	}
	return procs, nil
}

// Launch implements fleet.Launcher
func (w *World) Launch(ctx context.Context, op, nodeID string, replicas int, args []string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if replicas <= 0 {
		return false, nil
	}
	n, err := w.node(nodeID)
	if err != nil {
		return false, err
	}
	if !n.Rooted || !n.HasStaged(op) {
		return false, nil
	}
	cost, err := w.store.GetCost(op)
	if err != nil {
		return false, err
	}
	if n.Free() < cost*float64(replicas) {
		return false, nil
	}

	now := w.now()
	rec := &ProcessRecord{
		ID:     uuid.New().String(),
		NodeID: nodeID,
		Process: types.Process{
			Operation: op,
			Args:      args,
			Replicas:  replicas,
			StartedAt: now,
		},
	}

	fn, isModule := w.modules[op]
	if !isModule {
		rec.ExpiresAt = now.Add(w.ttl)
	}
	if err := w.store.CreateProcess(rec); err != nil {
		return false, fmt.Errorf("failed to store process: %w", err)
	}

	if isModule {
		runCtx, cancel := context.WithCancel(context.Background())
		w.cancels[rec.ID] = cancel
		w.wg.Add(1)
		go w.runModule(runCtx, rec, fn)
	}

	w.logger.Debug().
		Str("operation", op).
		Str("node", nodeID).
		Int("replicas", replicas).
		Strs("args", args).
		Msg("Process started")
	return true, nil
}

func (w *World) runModule(ctx context.Context, rec *ProcessRecord, fn ModuleFunc) {
	defer w.wg.Done()

	if err := fn(ctx); err != nil && ctx.Err() == nil {
		w.logger.Warn().Err(err).Str("module", rec.Process.Operation).Msg("Module exited with error")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if cancel, ok := w.cancels[rec.ID]; ok {
		cancel()
		delete(w.cancels, rec.ID)
	}
	if err := w.store.DeleteProcess(rec.ID); err != nil {
		w.logger.Error().Err(err).Str("module", rec.Process.Operation).Msg("Failed to remove module process")
	}
}

// Terminate implements fleet.Launcher
func (w *World) Terminate(ctx context.Context, op, nodeID string, args []string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	records, err := w.store.ListProcessesByNode(nodeID)
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if !r.Process.Matches(op, args) {
			continue
		}
		if cancel, ok := w.cancels[r.ID]; ok {
			cancel()
			delete(w.cancels, r.ID)
		}
		if err := w.store.DeleteProcess(r.ID); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// CostOf implements fleet.Launcher
func (w *World) CostOf(ctx context.Context, op string) (float64, error) {
	return w.store.GetCost(op)
}

// StageIfAbsent implements fleet.Launcher
func (w *World) StageIfAbsent(ctx context.Context, op, nodeID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.store.GetNode(nodeID)
	if err != nil {
		return err
	}
	if n.HasStaged(op) {
		return nil
	}
	n.Staged = append(n.Staged, op)
	return w.store.UpdateNode(n)
}

// Targets implements fleet.TargetSource
func (w *World) Targets(ctx context.Context) ([]types.Target, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.expire(); err != nil {
		return nil, err
	}
	records, err := w.store.ListTargets()
	if err != nil {
		return nil, err
	}
	out := make([]types.Target, 0, len(records))
	for _, t := range records {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Target implements fleet.TargetSource
func (w *World) Target(ctx context.Context, id string) (types.Target, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.expire(); err != nil {
		return types.Target{}, err
	}
	t, err := w.store.GetTarget(id)
	if err != nil {
		return types.Target{}, err
	}
	return *t, nil
}

// Account implements fleet.AccountSource
func (w *World) Account(ctx context.Context) (types.Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.expire(); err != nil {
		return types.Account{}, err
	}
	a, err := w.store.GetAccount()
	if err != nil {
		return types.Account{}, err
	}
	return *a, nil
}

// GrowthReplicas estimates the grow replicas that multiply a target's value.
// Every replica multiplies the value by 1 + Growth/1000, boosted by cores.
func (w *World) GrowthReplicas(ctx context.Context, t types.Target, multiplier float64) (float64, error) {
	if t.Growth <= 0 {
		return 0, fmt.Errorf("target %s does not grow", t.ID)
	}
	if multiplier <= 1 {
		return 0, nil
	}
	return math.Log(multiplier) / math.Log(growthRate(t)) / target.CoreBonus(t.Cores), nil
}

// Breach roots an external node when the account has enough port openers
// and skill. The target with the same ID, if any, becomes rooted too.
func (w *World) Breach(ctx context.Context, nodeID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.store.GetNode(nodeID)
	if err != nil {
		return false, err
	}
	if n.Rooted {
		return true, nil
	}
	account, err := w.store.GetAccount()
	if err != nil {
		return false, err
	}
	if n.Ownership != types.OwnershipExternal ||
		n.PortsRequired > account.PortOpeners ||
		n.RequiredSkill > account.Skill {
		return false, nil
	}

	n.Rooted = true
	if err := w.store.UpdateNode(n); err != nil {
		return false, err
	}
	if t, err := w.store.GetTarget(nodeID); err == nil {
		t.Rooted = true
		if err := w.store.UpdateTarget(t); err != nil {
			return false, err
		}
	}
	return true, nil
}

// PurchaseLimit implements provision.Market
func (w *World) PurchaseLimit(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.market.Limit, nil
}

// MaxCapacity implements provision.Market
func (w *World) MaxCapacity(ctx context.Context) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.market.MaxCapacity, nil
}

// PurchaseCost implements provision.Market
func (w *World) PurchaseCost(ctx context.Context, capacity float64) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return capacity * w.market.CostPerUnit, nil
}

// Purchase implements provision.Market. The new node takes name, or name-N
// with the lowest free N when name is taken, and comes rooted with nothing
// staged.
func (w *World) Purchase(ctx context.Context, name string, capacity float64) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	nodes, err := w.store.ListNodes()
	if err != nil {
		return "", err
	}
	purchased := 0
	taken := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		taken[n.ID] = true
		if n.IsPurchased() {
			purchased++
		}
	}
	if purchased >= w.market.Limit || capacity > w.market.MaxCapacity {
		return "", nil
	}

	account, err := w.store.GetAccount()
	if err != nil {
		return "", err
	}
	cost := capacity * w.market.CostPerUnit
	if account.Money < cost {
		return "", nil
	}

	id := name
	for i := 0; taken[id]; i++ {
		id = fmt.Sprintf("%s-%d", name, i)
	}

	account.Money -= cost
	if err := w.store.SaveAccount(account); err != nil {
		return "", err
	}
	node := &types.NodeRecord{
		ID:            id,
		TotalCapacity: capacity,
		Ownership:     types.OwnershipPurchased,
		Rooted:        true,
	}
	if err := w.store.CreateNode(node); err != nil {
		return "", err
	}
	w.logger.Info().Str("node", id).Float64("capacity", capacity).Float64("cost", cost).Msg("Node purchased")
	return id, nil
}

// Delete implements provision.Market. Nodes with running processes are kept.
func (w *World) Delete(ctx context.Context, id string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.store.GetNode(id)
	if err != nil {
		return false, err
	}
	if !n.IsPurchased() {
		return false, nil
	}
	procs, err := w.store.ListProcessesByNode(id)
	if err != nil {
		return false, err
	}
	if len(procs) > 0 {
		return false, nil
	}
	if err := w.store.DeleteNode(id); err != nil {
		return false, err
	}
	return true, nil
}

// Emit implements log.Transport
func (w *World) Emit(ctx context.Context, line []byte) error {
	return w.store.AppendLog(line)
}

// Drain implements log.Transport
func (w *World) Drain(ctx context.Context) ([][]byte, error) {
	return w.store.DrainLog()
}

// node reads one node with its used capacity. Callers hold w.mu.
func (w *World) node(id string) (*types.NodeRecord, error) {
	n, err := w.store.GetNode(id)
	if err != nil {
		return nil, err
	}
	used, err := w.usage()
	if err != nil {
		return nil, err
	}
	n.UsedCapacity = used[id]
	return n, nil
}

// usage sums the capacity held by processes per node. Callers hold w.mu.
func (w *World) usage() (map[string]float64, error) {
	procs, err := w.store.ListProcesses()
	if err != nil {
		return nil, err
	}
	costs := make(map[string]float64)
	used := make(map[string]float64)
	for _, p := range procs {
		op := p.Process.Operation
		cost, ok := costs[op]
		if !ok {
			if cost, err = w.store.GetCost(op); err != nil {
				return nil, err
			}
			costs[op] = cost
		}
		used[p.NodeID] += cost * float64(p.Process.Replicas)
	}
	return used, nil
}

// expire finishes every replica past its lifetime and applies its effect.
// Callers hold w.mu.
func (w *World) expire() error {
	procs, err := w.store.ListProcesses()
	if err != nil {
		return err
	}
	now := w.now()

	var account *types.Account
	for _, p := range procs {
		if p.ExpiresAt.IsZero() || now.Before(p.ExpiresAt) {
			continue
		}
		if err := w.store.DeleteProcess(p.ID); err != nil {
			return err
		}

		t, err := w.store.GetTarget(p.Process.FirstArg())
		if err != nil {
			continue
		}
		if account == nil {
			if account, err = w.store.GetAccount(); err != nil {
				return err
			}
		}
		applyEffect(t, account, p.Process)
		if err := w.store.UpdateTarget(t); err != nil {
			return err
		}
	}

	if account != nil {
		return w.store.SaveAccount(account)
	}
	return nil
}

func growthRate(t types.Target) float64 {
	return 1 + t.Growth/1000
}

// applyEffect changes a target the way a finished replica batch does
func applyEffect(t *types.Target, account *types.Account, p types.Process) {
	replicas := float64(p.Replicas)
	bonus := target.CoreBonus(t.Cores)

	switch p.Operation {
	case botnet.OpWeaken:
		t.Level = math.Max(t.MinLevel, t.Level-target.WeakenPerReplica*bonus*replicas)
	case botnet.OpGrow:
		if t.Growth > 0 {
			t.Value = math.Min(t.MaxValue, (t.Value+1)*math.Pow(growthRate(*t), replicas*bonus))
		}
		t.Level += GrowLevelPerReplica * replicas
	case botnet.OpHack:
		stolen := t.Value * math.Min(1, HackFractionPerReplica*replicas)
		t.Value -= stolen
		account.Money += stolen
		t.Level += HackLevelPerReplica * replicas
	}
}
