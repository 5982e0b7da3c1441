package metrics

import (
	"context"
	"time"

	"github.com/cuemby/burrow/pkg/fleet"
	"github.com/cuemby/burrow/pkg/log"
)

// Collector periodically samples the fleet into gauges
type Collector struct {
	source   fleet.NodeSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source fleet.NodeSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.Collect(context.Background())

		for {
			select {
			case <-ticker.C:
				c.Collect(context.Background())
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect samples the fleet once and reports driver health
func (c *Collector) Collect(ctx context.Context) {
	snap := fleet.NewSnapshot(c.source)
	if err := snap.Refresh(ctx); err != nil {
		UpdateComponent(ComponentDriver, false, err.Error())
		logger := log.WithComponent("collector")
		logger.Debug().Err(err).Msg("Fleet sample failed")
		return
	}
	UpdateComponent(ComponentDriver, true, "")

	nodes := snap.Nodes()
	FleetNodes.Set(float64(len(nodes)))

	total, used := fleet.Capacity(nodes)
	FleetCapacity.WithLabelValues("total").Set(total)
	FleetCapacity.WithLabelValues("used").Set(used)

	RunningReplicas.Reset()
	counts := make(map[string]int)
	for _, placed := range snap.Search(nodes, "", nil) {
		counts[placed.Process.Operation] += placed.Process.Replicas
	}
	for op, n := range counts {
		RunningReplicas.WithLabelValues(op).Set(float64(n))
	}
}
