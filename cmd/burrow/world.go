package main

import (
	"fmt"

	"github.com/cuemby/burrow/pkg/storage"
)

// openWorld opens the fleet database in dataDir and seeds it when empty.
// Module processes left by an earlier run are removed. An empty seedPath
// uses the built-in world. The returned func shuts the
// world down and closes the database.
func openWorld(dataDir, seedPath string) (*storage.World, func(), error) {
	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open fleet database: %v", err)
	}

	world := storage.NewWorld(store, cfg.Simulation.ReplicaTTL)
	closeWorld := func() {
		world.Shutdown()
		store.Close()
	}

	nodes, err := store.ListNodes()
	if err != nil {
		closeWorld()
		return nil, nil, fmt.Errorf("failed to read fleet: %v", err)
	}
	if len(nodes) > 0 {
		if _, err := world.Reap(); err != nil {
			closeWorld()
			return nil, nil, fmt.Errorf("failed to clear stale modules: %v", err)
		}
		return world, closeWorld, nil
	}

	seed, err := loadSeed(seedPath)
	if err != nil {
		closeWorld()
		return nil, nil, err
	}
	if err := world.Load(seed); err != nil {
		closeWorld()
		return nil, nil, fmt.Errorf("failed to seed fleet: %v", err)
	}
	return world, closeWorld, nil
}

func loadSeed(path string) (*storage.Seed, error) {
	if path == "" {
		return storage.DefaultSeed()
	}
	return storage.LoadSeed(path)
}
