package raftadapter

import (
	"sync"
	"time"

	"github.com/flowmesh/partitiond/pkg/health"
)

// Contactor is the narrow interface HealthProbe needs; *Adapter satisfies
// it, and tests can supply a fake without standing up a real raft node.
type Contactor interface {
	LastContact() time.Time
}

// HealthProbe polls a Contactor's LastContact on a ticker and reports
// unhealthy once the gap exceeds staleAfter. It implements health.Component
// so it can be registered into a health.Supervisor, and is also the probe
// whose failure edge a caller subscribes to directly to drive a partition
// to Inactive, since the generic supervisor aggregate alone doesn't
// distinguish which child failed.
type HealthProbe struct {
	adapter    Contactor
	staleAfter time.Duration
	interval   time.Duration

	mu        sync.Mutex
	healthy   bool
	listeners map[int]health.FailureListener
	nextID    int
	stopCh    chan struct{}
}

// NewHealthProbe creates a probe that considers the partition unhealthy
// once LastContact is older than staleAfter.
func NewHealthProbe(adapter Contactor, staleAfter time.Duration) *HealthProbe {
	return &HealthProbe{
		adapter:    adapter,
		staleAfter: staleAfter,
		interval:   staleAfter / 2,
		healthy:    true,
		listeners:  make(map[int]health.FailureListener),
	}
}

// Start begins polling. Close stops it. Calling Start twice is a no-op.
func (p *HealthProbe) Start() {
	p.mu.Lock()
	if p.stopCh != nil {
		p.mu.Unlock()
		return
	}
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.mu.Unlock()

	interval := p.interval
	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.poll()
			case <-stopCh:
				return
			}
		}
	}()
}

// Close stops polling. Subscribers stay registered.
func (p *HealthProbe) Close() {
	p.mu.Lock()
	if p.stopCh == nil {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.stopCh = nil
	p.mu.Unlock()
}

func (p *HealthProbe) poll() {
	stale := time.Since(p.adapter.LastContact()) > p.staleAfter
	p.setHealthy(!stale)
}

func (p *HealthProbe) setHealthy(healthy bool) {
	p.mu.Lock()
	changed := p.healthy != healthy
	p.healthy = healthy
	var listeners []health.FailureListener
	if changed {
		for _, l := range p.listeners {
			listeners = append(listeners, l)
		}
	}
	p.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		if healthy {
			l.OnRecovered()
		} else {
			l.OnFailure()
		}
	}
}

func (p *HealthProbe) Status() health.AggregateStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.healthy {
		return health.Healthy
	}
	return health.Unhealthy
}

func (p *HealthProbe) Subscribe(l health.FailureListener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}
