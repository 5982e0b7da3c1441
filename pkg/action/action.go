package action

import (
	"context"
	"fmt"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/fleet"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Action is a prioritized unit of work evaluated once per tick
type Action interface {
	// Name identifies the action in logs and results
	Name() string

	// Priority orders actionable actions; lower values run first
	Priority(ctx context.Context, env *Env) (int, error)

	// Actionable reports whether Perform has anything to do right now
	Actionable(ctx context.Context, env *Env) (bool, error)

	// Perform executes the action. Expected failures are reported in the
	// Result; a returned error means something unexpected happened.
	Perform(ctx context.Context, env *Env) (Result, error)
}

// Base carries the name and static priority most actions share
type Base struct {
	ActionName     string
	StaticPriority int
}

// Name implements Action
func (b Base) Name() string {
	return b.ActionName
}

// Priority implements Action
func (b Base) Priority(ctx context.Context, env *Env) (int, error) {
	return b.StaticPriority, nil
}

// Env is the explicit context handed to every action.
// Fleet and Account are refreshed by the scheduler before they are read.
type Env struct {
	Driver  fleet.Driver
	Config  *config.Config
	Fleet   *fleet.Snapshot
	Account types.Account
	Logger  zerolog.Logger
}

// NewEnv creates an Env with an empty snapshot
func NewEnv(driver fleet.Driver, cfg *config.Config, logger zerolog.Logger) *Env {
	return &Env{
		Driver: driver,
		Config: cfg,
		Fleet:  fleet.NewSnapshot(driver),
		Logger: logger,
	}
}

// Refresh re-reads the fleet and the account
func (e *Env) Refresh(ctx context.Context) error {
	if err := e.Fleet.Refresh(ctx); err != nil {
		return err
	}
	account, err := e.Driver.Account(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to read account: %v", types.ErrSnapshotUnavailable, err)
	}
	e.Account = account
	return nil
}

// Usable returns the nodes replicas may be placed on
func (e *Env) Usable() []types.NodeRecord {
	return e.Fleet.Usable(e.Config.UpgradeMarker)
}

// Spendable returns money available above the configured cash reserve
func (e *Env) Spendable() float64 {
	return e.Account.Spendable(e.Config.CashReserve)
}
