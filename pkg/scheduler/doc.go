/*
Package scheduler runs the action engines of Burrow.

An engine is an ordered list of actions. Every tick the scheduler picks the
most urgent actionable actions and executes them, then goes back to sleep:

	┌──────────────────────────────────────────────────────────┐
	│                     Scheduler Tick                       │
	└────────────────┬─────────────────────────────────────────┘
	                 │
	                 ▼
	  1. Refresh fleet and account snapshots
	     (failure: warn, tick is idle)
	  2. For each action: Actionable? then Priority
	  3. Nothing actionable: debug "Nothing to do."
	  4. Batch = actionable actions at the lowest priority,
	     in registration order
	  5. For each batch member:
	     • refresh snapshots (after the first)
	     • re-check Actionable, skip when false
	     • Perform, recovering panics
	     • log one SUCCESS/FAILURE line with task details
	  6. Flush buffered logs

# Priorities

Lower values run first. Two actions with the same priority always run in
the tick that selects either of them, in the order they were registered.
An engine that registers breach at 10 and attacks at 20 therefore never
attacks in a tick where something can still be breached.

# Failure isolation

Actions report expected failures inside their Result. An error returned by
Perform, or a panic, becomes a failed Result for that action only; the rest
of the batch still runs.

# Usage

	env := action.NewEnv(driver, cfg, log.WithComponent("hacking"))
	s := scheduler.NewScheduler("hacking", env, actions, broker)

	// One tick, as a supervised module does
	report, err := s.Tick(ctx)

	// Or tick until cancelled, as burrow module --loop does
	err = s.Run(ctx, cfg.TickInterval)
*/
package scheduler
