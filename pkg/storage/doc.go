/*
Package storage provides a BoltDB-backed simulated fleet for Burrow.

The package has two layers. BoltStore persists world state (nodes,
targets, running processes, operation costs, the account and a queue of
relayed log lines) as JSON in bbolt buckets. World sits on top of a Store
and implements every interface the engines talk to: fleet.Driver,
botnet.Breacher, botnet.GrowthModel, provision.Market and log.Transport.
That lets the daemon and the simulate command run the real schedulers
against a world that reacts to them.

# Architecture

	┌──────────────────── SIMULATED WORLD ─────────────────────┐
	│                                                            │
	│  Scheduler / Supervisor                                    │
	│        │  Nodes, Launch, Terminate, Breach, Purchase       │
	│        ▼                                                   │
	│  ┌────────────────────────────────────────────┐          │
	│  │                 World                       │          │
	│  │  - expire(): finish replicas past TTL       │          │
	│  │  - applyEffect(): weaken / grow / hack      │          │
	│  │  - modules: goroutines per module process   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     ▼                                      │
	│  ┌────────────────────────────────────────────┐          │
	│  │          BoltStore (<dataDir>/burrow.db)    │          │
	│  │  nodes | targets | processes | costs        │          │
	│  │  account | logport                          │          │
	│  └────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────────┘

# Replica Lifetime

Attack replicas (weaken, grow, hack) are stored with an expiry of
launch time plus the world's TTL. Every read expires what is due and
applies its effect to the target named by the first argument:

  - weaken lowers the level by WeakenPerReplica per replica, never below
    the minimum
  - grow multiplies the value by 1 + Growth/1000 per replica, capped at
    the maximum, and raises the level slightly
  - hack moves a share of the value into the account and raises the
    level slightly

Used capacity is never stored. It is the sum of cost times replicas over
the node's running processes, so it is always consistent with them.

# Modules

Operations registered with RegisterModule do not expire. Launching one
starts the registered function in a goroutine with its own context.
Terminate cancels that context and removes the process; a function that
returns on its own removes its process too.

# Seeds

A Seed is a YAML description of the starting world. DefaultSeed returns
the embedded default_world.yaml:

	account:
	  money: 10200000
	  skill: 50
	  port_openers: 1
	market:
	  limit: 4
	  max_capacity: 1024
	  cost_per_unit: 1100
	nodes:
	  - id: home
	    capacity: 128
	    ownership: local
	    rooted: true

# Usage

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	world := storage.NewWorld(store, cfg.Simulation.ReplicaTTL)
	seed, err := storage.DefaultSeed()
	if err != nil {
		return err
	}
	if err := world.Load(seed); err != nil {
		return err
	}

# Thread Safety

World serializes all access with one mutex. bbolt itself allows a single
writer, and every write is its own transaction.
*/
package storage
