package partition

import (
	"context"
	"strconv"
	"time"

	"github.com/flowmesh/partitiond/pkg/metrics"
)

// contextSnapshot is a point-in-time, copy-out view of a Context's gauges, read
// via an actor-dispatched task so a concurrent metrics scrape never
// observes a torn Context.
type contextSnapshot struct {
	role              Role
	term              uint64
	servicesInstalled bool
	processingPaused  bool
	diskSpaceAvail    bool
}

func (a *Actor) snapshotContext(ctx context.Context) (contextSnapshot, error) {
	resultCh := make(chan contextSnapshot, 1)
	ok := a.enqueue(func() {
		resultCh <- contextSnapshot{
			role:              a.pc.Role,
			term:              a.pc.Term,
			servicesInstalled: a.pc.ServicesInstalled,
			processingPaused:  a.pc.ProcessingPaused,
			diskSpaceAvail:    a.pc.DiskSpaceAvailable,
		}
	})
	if !ok {
		return contextSnapshot{}, ErrActorClosed
	}
	select {
	case s := <-resultCh:
		return s, nil
	case <-ctx.Done():
		return contextSnapshot{}, ctx.Err()
	}
}

// MetricsCollector periodically samples an Actor's Context and republishes
// it as the role, term, services-installed, processing-paused and
// disk-space gauges in pkg/metrics (PartitionHealthy is published by the
// health.Supervisor itself), grounded on the same
// sample-and-publish ticker shape as raftadapter.HealthProbe.
type MetricsCollector struct {
	actor    *Actor
	identity Identity
	interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMetricsCollector builds a collector sampling actor every interval.
func NewMetricsCollector(actor *Actor, identity Identity, interval time.Duration) *MetricsCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &MetricsCollector{actor: actor, identity: identity, interval: interval}
}

// Start begins the sampling loop.
func (c *MetricsCollector) Start() {
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.run()
}

// Close stops the sampling loop and waits for it to exit.
func (c *MetricsCollector) Close() {
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	<-c.doneCh
}

func (c *MetricsCollector) run() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sample()
		case <-c.stopCh:
			return
		}
	}
}

func (c *MetricsCollector) sample() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := c.actor.snapshotContext(ctx)
	if err != nil {
		return
	}

	nodeID := c.identity.NodeID
	partitionID := strconv.FormatUint(uint64(c.identity.PartitionID), 10)

	// PartitionRole's scale is 0=inactive, 1=follower, 2=leader; a Context
	// that has not yet processed a role change reports as inactive.
	role := 0.0
	switch s.role {
	case RoleFollower:
		role = 1.0
	case RoleLeader:
		role = 2.0
	}
	metrics.PartitionRole.WithLabelValues(nodeID, partitionID).Set(role)
	metrics.PartitionTerm.WithLabelValues(nodeID, partitionID).Set(float64(s.term))

	installed := 0.0
	if s.servicesInstalled {
		installed = 1.0
	}
	metrics.ServicesInstalled.WithLabelValues(nodeID, partitionID).Set(installed)

	paused := 0.0
	if s.processingPaused {
		paused = 1.0
	}
	metrics.ProcessingPaused.WithLabelValues(nodeID, partitionID).Set(paused)

	diskAvail := 0.0
	if s.diskSpaceAvail {
		diskAvail = 1.0
	}
	metrics.DiskSpaceAvailable.WithLabelValues(nodeID, partitionID).Set(diskAvail)
}
