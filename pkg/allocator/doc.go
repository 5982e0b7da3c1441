/*
Package allocator places replicated operation instances on fleet nodes.

The allocator is a pure function over a node snapshot. It does not launch
anything and does not remember earlier answers: every placement consumes
capacity, so callers must refresh the snapshot before asking again.

# Algorithm

For each node, in lexicographic ID order:

	available = floor((total - used - (local ? reserve : 0)) / cost)

The node minimizing (needed - available) wins, the first one on ties, and it
receives min(available, needed) replicas. Because the difference keeps
decreasing as availability grows past the need, the node with the most room
is always picked. This is worst fit: big nodes absorb whole targets, small
nodes stay intact for small jobs, and fewer launch calls mean fewer partial
failures.

# Usage

	for needed > 0 {
		p, err := allocator.Allocate(snapshot.Nodes(), cost, needed, cfg.LocalReserve)
		if errors.Is(err, types.ErrCapacityExhausted) {
			break // retried next tick
		}
		launch(p.Node.ID, p.Replicas)
		snapshot.RefreshNode(ctx, p.Node.ID)
		needed = recompute()
	}
*/
package allocator
