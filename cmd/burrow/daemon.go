package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/supervisor"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the supervisor on the local node",
	Long: `Run the module supervisor against the fleet stored in the data directory.

Every tick the supervisor launches each registered module that is not
already running, waits for it to exit, and terminates it when it overruns
its timeout. An instance that survives a terminate, or one left over from
before the daemon started, is held to the same timeout on later ticks.
Metrics and health probes are served on --metrics-addr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seedPath, _ := cmd.Flags().GetString("seed")
		if cmd.Flags().Changed("metrics-addr") {
			cfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
		}
		if cmd.Flags().Changed("api-addr") {
			cfg.API.Addr, _ = cmd.Flags().GetString("api-addr")
		}

		world, closeWorld, err := openWorld(cfg.DataDir, seedPath)
		if err != nil {
			return err
		}
		defer closeWorld()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("Burrow daemon is running. Press Ctrl+C to stop.")
		if err := runFleet(ctx, world, broker); err != nil {
			return err
		}
		fmt.Println("\n✓ Shutdown complete")
		return nil
	},
}

func init() {
	daemonCmd.Flags().String("seed", "", "YAML world used when the data directory is empty")
	daemonCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for metrics and health endpoints")
	daemonCmd.Flags().String("api-addr", "", "Address for the status API (disabled when empty)")
}

// newAPIServer builds the status API with its own engine instances, so
// evaluations never share state with running modules
func newAPIServer(world *storage.World) (*api.Server, error) {
	evaluators := make(map[string]api.Evaluator, len(engines))
	for _, name := range engineNames() {
		engine, err := newEngine(name, world, log.WithComponent("api"), nil)
		if err != nil {
			return nil, err
		}
		evaluators[name] = engine
	}
	return api.NewServer(world, evaluators, cfg.API.Secret), nil
}

// runFleet supervises the engine modules until ctx is cancelled
func runFleet(ctx context.Context, world *storage.World, broker *events.Broker) error {
	logger := log.WithComponent("daemon")

	registerModules(world, broker)

	// One supervisor round runs every module to completion or timeout
	modules := supervisedModules()
	var round time.Duration
	for _, m := range modules {
		round += m.Timeout
	}
	metrics.SetStaleAfter(2*round + cfg.TickInterval)
	for _, name := range []string{metrics.ComponentDriver, metrics.ComponentScheduler, metrics.ComponentSupervisor} {
		metrics.RegisterComponent(name, true, "")
	}

	collector := metrics.NewCollector(world, cfg.TickInterval*10)
	collector.Start()
	defer collector.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 2)
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			if err := srv.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %v", err)
			}
		}()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics server started")
	}

	if cfg.API.Addr != "" {
		srv, err := newAPIServer(world)
		if err != nil {
			return err
		}
		go srv.Follow(ctx, broker)
		go func() {
			if err := srv.Start(ctx, cfg.API.Addr); err != nil {
				serverErr <- fmt.Errorf("api server error: %v", err)
			}
		}()
		logger.Info().Str("addr", cfg.API.Addr).Bool("auth", cfg.API.Secret != "").Msg("Status API started")
	}

	sup := supervisor.NewSupervisor(world, cfg, modules, world, broker)
	done := make(chan error, 1)
	go func() {
		done <- sup.Run(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case err = <-serverErr:
		cancel()
		<-done
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
