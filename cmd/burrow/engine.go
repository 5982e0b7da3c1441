package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/spf13/cobra"
)

var moduleCmd = &cobra.Command{
	Use:   "module <name>",
	Short: "Run one tick of a module engine",
	Long: `Run one scheduling tick of a module engine against the stored fleet
and print what each executed action did. With --loop the engine ticks every
tick_interval until interrupted, logging each executed action.

Modules: hacking, provision`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		world, closeWorld, err := openWorld(cfg.DataDir, "")
		if err != nil {
			return err
		}
		defer closeWorld()

		engine, err := newEngine(args[0], world, log.WithComponent("module"), nil)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if loop, _ := cmd.Flags().GetBool("loop"); loop {
			log.Logger.Info().
				Str("module", args[0]).
				Dur("interval", cfg.TickInterval).
				Msg("Running module until interrupted")
			if err := engine.Run(ctx, cfg.TickInterval); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}

		report, err := engine.Tick(ctx)
		if err != nil {
			return fmt.Errorf("tick failed: %v", err)
		}
		if report.Idle {
			fmt.Println("Nothing to do.")
			return nil
		}

		for _, r := range report.Results {
			succeeded, failed := r.Counts()
			fmt.Printf("%-24s %-8s %d succeeded, %d failed\n", r.Action, r.Status(), succeeded, failed)
			if r.Err != nil {
				fmt.Printf("  error: %v\n", r.Err)
			}
			for _, t := range r.Tasks {
				mark := "✓"
				if !t.Success {
					mark = "✗"
				}
				fmt.Printf("  %s %-10s %-20s %-20s %d\n", mark, t.Operation, t.Node, t.Target, t.Replicas)
			}
		}
		return nil
	},
}

func init() {
	moduleCmd.Flags().Bool("loop", false, "Tick repeatedly until interrupted")
}

var actionsCmd = &cobra.Command{
	Use:   "actions <name>",
	Short: "List a module's actions with actionability and priority",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		world, closeWorld, err := openWorld(cfg.DataDir, "")
		if err != nil {
			return err
		}
		defer closeWorld()

		engine, err := newEngine(args[0], world, log.WithComponent("actions"), nil)
		if err != nil {
			return err
		}

		evals, err := engine.Evaluate(context.Background())
		if err != nil {
			return fmt.Errorf("failed to evaluate: %v", err)
		}

		fmt.Printf("%-24s %-12s %s\n", "ACTION", "ACTIONABLE", "PRIORITY")
		for _, ev := range evals {
			priority := "-"
			if ev.Actionable {
				priority = fmt.Sprintf("%d", ev.Priority)
			}
			actionable := fmt.Sprintf("%t", ev.Actionable)
			if ev.Err != nil {
				actionable = "error"
				priority = ev.Err.Error()
			}
			fmt.Printf("%-24s %-12s %s\n", ev.Action.Name(), actionable, priority)
		}
		return nil
	},
}
