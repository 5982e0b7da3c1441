package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/target"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the daemon against a throwaway simulated world",
	Long: `Run the supervisor and both module engines against a freshly seeded
world in a temporary directory, print every event, and summarize the
fleet and targets when the run ends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seedPath, _ := cmd.Flags().GetString("seed")
		duration, _ := cmd.Flags().GetDuration("duration")
		cfg.Simulation.ReplicaTTL, _ = cmd.Flags().GetDuration("replica-ttl")
		cfg.MetricsAddr = ""

		dir := cfg.DataDir
		if !cmd.Flags().Changed("data-dir") {
			tmp, err := os.MkdirTemp("", "burrow-sim-")
			if err != nil {
				return fmt.Errorf("failed to create data directory: %v", err)
			}
			defer os.RemoveAll(tmp)
			dir = tmp
		}

		world, closeWorld, err := openWorld(dir, seedPath)
		if err != nil {
			return err
		}
		defer closeWorld()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()
		sub := broker.Subscribe()
		defer broker.Unsubscribe(sub)
		go printEvents(sub)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, duration)
		defer cancel()

		fmt.Printf("Simulating for %s (replica lifetime %s)\n\n", duration, cfg.Simulation.ReplicaTTL)
		if err := runFleet(ctx, world, broker); err != nil && ctx.Err() == nil {
			return err
		}

		return printSummary(world)
	},
}

func init() {
	simulateCmd.Flags().String("seed", "", "YAML world to simulate (default: built-in world)")
	simulateCmd.Flags().Duration("duration", time.Minute, "How long to run")
	simulateCmd.Flags().Duration("replica-ttl", 2*time.Second, "Lifetime of one attack replica")
}

func printEvents(sub events.Subscriber) {
	for ev := range sub {
		if ev.Type == events.EventTickIdle {
			continue
		}
		fmt.Printf("%s %-18s %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Type, ev.Message)
	}
}

func printSummary(world *storage.World) error {
	ctx := context.Background()

	account, err := world.Account(ctx)
	if err != nil {
		return err
	}
	nodes, err := world.Nodes(ctx)
	if err != nil {
		return err
	}
	targets, err := world.Targets(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Money: %.0f\n\n", account.Money)

	fmt.Printf("%-20s %-10s %-8s %10s %10s\n", "NODE", "OWNERSHIP", "ROOTED", "USED", "TOTAL")
	for _, n := range nodes {
		fmt.Printf("%-20s %-10s %-8t %10.1f %10.1f\n", n.ID, n.Ownership, n.Rooted, n.UsedCapacity, n.TotalCapacity)
	}

	fmt.Println()
	fmt.Printf("%-20s %-10s %8s %8s %14s %14s\n", "TARGET", "PHASE", "LEVEL", "MIN", "VALUE", "MAX")
	for _, t := range targets {
		fmt.Printf("%-20s %-10s %8.2f %8.2f %14.0f %14.0f\n",
			t.ID, target.Classify(t), t.Level, t.MinLevel, t.Value, t.MaxValue)
	}
	return nil
}
