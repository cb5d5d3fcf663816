package health

import (
	"strconv"
	"sync"

	"github.com/flowmesh/partitiond/pkg/metrics"
)

// AggregateStatus is the two-valued status a Component reports upward.
// It deliberately has nothing to do with Result/Status above: those track
// a single checker's hysteresis over repeated Check() calls, this tracks
// the health tree's current aggregate verdict.
type AggregateStatus int

const (
	Healthy AggregateStatus = iota
	Unhealthy
)

func (s AggregateStatus) String() string {
	if s == Healthy {
		return "healthy"
	}
	return "unhealthy"
}

// FailureListener receives edge-triggered notifications when a Component's
// aggregate status flips. Both methods fire at most once per transition;
// a component that is already unhealthy does not call OnFailure again.
type FailureListener interface {
	OnFailure()
	OnRecovered()
}

// FailureListenerFuncs adapts two plain functions to a FailureListener,
// for callers that don't want to define a named type for one-off listeners.
type FailureListenerFuncs struct {
	OnFailureFunc   func()
	OnRecoveredFunc func()
}

func (f FailureListenerFuncs) OnFailure() {
	if f.OnFailureFunc != nil {
		f.OnFailureFunc()
	}
}

func (f FailureListenerFuncs) OnRecovered() {
	if f.OnRecoveredFunc != nil {
		f.OnRecoveredFunc()
	}
}

// Component is the capability every supervised health source exposes: a
// point-in-time status and the ability to subscribe to edge transitions.
// A Supervisor is itself a Component, so supervisors nest by registration
// rather than by inheritance.
type Component interface {
	Status() AggregateStatus
	Subscribe(l FailureListener) (unsubscribe func())
}

// ManualProbe is a Component whose status is set directly by its owner
// rather than derived from polling, for signals like "services installed
// for the current role" that the transition engine already knows the
// answer to.
type ManualProbe struct {
	mu        sync.Mutex
	healthy   bool
	listeners map[int]FailureListener
	nextID    int
}

// NewManualProbe creates a probe that starts in the given state.
func NewManualProbe(healthy bool) *ManualProbe {
	return &ManualProbe{
		healthy:   healthy,
		listeners: make(map[int]FailureListener),
	}
}

func (p *ManualProbe) Status() AggregateStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.healthy {
		return Healthy
	}
	return Unhealthy
}

func (p *ManualProbe) Subscribe(l FailureListener) func() {
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

// SetHealthy updates the probe's status, firing OnFailure/OnRecovered on
// every subscriber exactly when the status actually flips.
func (p *ManualProbe) SetHealthy(healthy bool) {
	p.mu.Lock()
	changed := p.healthy != healthy
	p.healthy = healthy
	var listeners []FailureListener
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

// Supervisor aggregates the status of its registered child Components:
// unhealthy iff any child is unhealthy. It implements Component itself,
// so a Supervisor can be registered as a child of another Supervisor.
// Transitions in the aggregate push onFailure/onRecovered to the
// supervisor's own subscribers and update the PartitionHealthy gauge.
type Supervisor struct {
	nodeID      string
	partitionID uint32

	mu          sync.Mutex
	children    map[string]Component
	unsubscribe map[string]func()
	unhealthy   map[string]bool
	listeners   map[int]FailureListener
	nextID      int
	aggregate   AggregateStatus
}

// NewSupervisor creates a Supervisor whose metrics are labeled with the
// given partition identity.
func NewSupervisor(nodeID string, partitionID uint32) *Supervisor {
	s := &Supervisor{
		nodeID:      nodeID,
		partitionID: partitionID,
		children:    make(map[string]Component),
		unsubscribe: make(map[string]func()),
		unhealthy:   make(map[string]bool),
		listeners:   make(map[int]FailureListener),
		aggregate:   Healthy,
	}
	s.publishGauge()
	return s
}

// Register adds a child component under name, immediately folding its
// current status into the aggregate and subscribing to its future
// transitions. Registering the same name twice replaces the previous
// registration after deregistering it.
func (s *Supervisor) Register(name string, c Component) {
	s.mu.Lock()
	if unsub, ok := s.unsubscribe[name]; ok {
		unsub()
	}
	s.children[name] = c
	s.mu.Unlock()

	unsub := c.Subscribe(FailureListenerFuncs{
		OnFailureFunc:   func() { s.setChildUnhealthy(name, true) },
		OnRecoveredFunc: func() { s.setChildUnhealthy(name, false) },
	})

	s.mu.Lock()
	s.unsubscribe[name] = unsub
	s.unhealthy[name] = c.Status() == Unhealthy
	s.mu.Unlock()

	s.recompute()
}

// Deregister removes a previously registered child, unsubscribing from it
// and re-evaluating the aggregate without its contribution.
func (s *Supervisor) Deregister(name string) {
	s.mu.Lock()
	if unsub, ok := s.unsubscribe[name]; ok {
		unsub()
	}
	delete(s.children, name)
	delete(s.unsubscribe, name)
	delete(s.unhealthy, name)
	s.mu.Unlock()

	s.recompute()
}

func (s *Supervisor) setChildUnhealthy(name string, unhealthy bool) {
	s.mu.Lock()
	if _, ok := s.children[name]; !ok {
		s.mu.Unlock()
		return
	}
	s.unhealthy[name] = unhealthy
	s.mu.Unlock()

	s.recompute()
}

func (s *Supervisor) recompute() {
	s.mu.Lock()
	next := Healthy
	for _, bad := range s.unhealthy {
		if bad {
			next = Unhealthy
			break
		}
	}
	changed := next != s.aggregate
	s.aggregate = next
	var listeners []FailureListener
	if changed {
		for _, l := range s.listeners {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	if changed {
		s.publishGauge()
	}
	for _, l := range listeners {
		if next == Unhealthy {
			l.OnFailure()
		} else {
			l.OnRecovered()
		}
	}
}

func (s *Supervisor) publishGauge() {
	v := 0.0
	if s.Status() == Healthy {
		v = 1.0
	}
	metrics.PartitionHealthy.WithLabelValues(s.nodeID, strconv.FormatUint(uint64(s.partitionID), 10)).Set(v)
}

func (s *Supervisor) Status() AggregateStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregate
}

func (s *Supervisor) Subscribe(l FailureListener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
