package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/burrow/pkg/action"
	"github.com/cuemby/burrow/pkg/botnet"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/provision"
	"github.com/cuemby/burrow/pkg/scheduler"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/supervisor"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

const (
	ModuleHacking   = "hacking"
	ModuleProvision = "provision"
)

// engines maps each module to the actions its scheduler runs, in
// registration order. Order breaks priority ties.
var engines = map[string]func(w *storage.World) []action.Action{
	ModuleHacking: func(w *storage.World) []action.Action {
		return []action.Action{
			botnet.NewBreachAction(w),
			botnet.NewWeakenAction(),
			botnet.NewGrowAction(w),
			botnet.NewHackAction(),
		}
	},
	ModuleProvision: func(w *storage.World) []action.Action {
		return []action.Action{
			provision.NewMarkForUpgradeAction(w),
			provision.NewRemoveMarkedAction(w),
			provision.NewPurchaseAction(w),
		}
	},
}

// supervisedModules lists what the supervisor keeps running, in launch order
func supervisedModules() []supervisor.Module {
	return []supervisor.Module{
		{Operation: ModuleHacking, Replicas: 1, Timeout: 30 * time.Second},
		{Operation: ModuleProvision, Replicas: 1, Timeout: 30 * time.Second},
	}
}

func engineNames() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newEngine builds the scheduler of one module
func newEngine(name string, w *storage.World, logger zerolog.Logger, broker *events.Broker) (*scheduler.Scheduler, error) {
	build, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("module %s (known: %v): %w", name, engineNames(), types.ErrNotFound)
	}
	env := action.NewEnv(w, cfg, logger)
	return scheduler.NewScheduler(name, env, build(w), broker), nil
}

// registerModules makes every engine launchable as a module process. A
// module run is one scheduler tick whose log lines travel over the world's
// log transport, like a process that does not own the terminal.
func registerModules(w *storage.World, broker *events.Broker) {
	for _, name := range engineNames() {
		name := name
		w.RegisterModule(name, func(ctx context.Context) error {
			logger := zerolog.New(log.TransportWriter{Transport: w}).
				Level(log.ParseLevel(log.Level(cfg.Log.Level))).
				With().
				Timestamp().
				Str("module", name).
				Logger()

			engine, err := newEngine(name, w, logger, broker)
			if err != nil {
				return err
			}
			_, err = engine.Tick(ctx)
			return err
		})
	}
}
