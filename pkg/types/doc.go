/*
Package types defines the core data structures shared by every Burrow package.

The types here are plain snapshots. Nothing in this package talks to the
fleet; values are produced by a fleet driver, read by the scheduler for the
duration of one tick and then thrown away.

# Core Types

Fleet:
  - NodeRecord: identity, capacity and availability of one node
  - Ownership: local, purchased or external
  - Process: one running operation instance with its replica count

Targets:
  - Target: a contended resource with a security-like Level and a
    value-like Value, both driven toward a goal state

Account:
  - Account: money, skill and port opener count of the operator

# Invariants

NodeRecord.UsedCapacity never exceeds TotalCapacity; Free clamps at zero so a
driver reporting a transient overshoot does not produce negative capacity.

Target.Level is never below MinLevel and Value stays within [0, MaxValue].
Values that break these rules are classified as ineligible by the target
package rather than repaired.

# Errors

errors.go holds the sentinel errors used across packages. Callers wrap them
with fmt.Errorf("...: %w", err) and test with errors.Is:

	placement, err := allocator.Allocate(nodes, cost, needed, reserve)
	if errors.Is(err, types.ErrCapacityExhausted) {
		// not an error, try again next tick
	}
*/
package types
