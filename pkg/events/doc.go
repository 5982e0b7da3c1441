/*
Package events provides an in-memory event broker for Burrow.

Schedulers and the supervisor publish what they did; subscribers such as
the simulate command's progress printer consume it. Delivery is
asynchronous and lossy by choice of the publisher: Publish never blocks
a tick, and a slow subscriber misses events instead of stalling others.

# Event Types

	tick.idle          a scheduler found nothing actionable
	action.executed    an action ran; metadata carries task counts
	replica.launched   one launch inside an action succeeded
	launch.failed      one launch inside an action failed
	module.launched    the supervisor started a module
	module.timeout     the supervisor terminated an overrunning module

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		fmt.Println(ev.Type, ev.Message)
	}

A nil *Broker accepts Publish and Emit and drops the event, so
components can run without one.
*/
package events
