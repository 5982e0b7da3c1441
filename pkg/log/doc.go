/*
Package log provides structured logging for Burrow using zerolog.

A single global Logger is configured once by Init. Components derive
child loggers with WithComponent, WithNodeID, WithOperation or WithTarget
so every line carries the fields needed to follow one tick or one module
run.

# Output Modes

Console output is human readable and meant for terminals. JSON output
writes one object per line and is what module processes use, because the
supervisor relays their lines verbatim.

Buffered output holds every line in memory until Flush. The scheduler
flushes at the end of each tick, so a tick's log lines are written
together and never interleave with another engine's tick.

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Buffered:   true,
	})
	defer log.Flush()

# Log Transport

Module processes do not own the terminal. They write to a Transport
through TransportWriter, and the supervisor copies queued lines into its
own output with Relay on every poll:

	module:     zerolog → TransportWriter → Transport.Emit
	supervisor: Relay(Transport.Drain) → log.Output()

Output is the console writer unless JSON output is enabled, so relayed
lines are rendered the same way as the supervisor's own.

The simulated world implements Transport on top of its BoltDB log queue.

# Levels

trace, debug, info, warn and error. Unknown levels fall back to info.
*/
package log
