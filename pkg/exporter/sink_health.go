package exporter

import (
	"context"
	"sync"
	"time"

	"github.com/flowmesh/partitiond/pkg/health"
)

// SinkHealth polls a health.Checker against the export sink's health
// endpoint and exposes the result as a health.Component, so a sink outage
// surfaces through the partition's health tree instead of only showing up
// as export errors in the logs.
type SinkHealth struct {
	checker health.Checker
	config  health.Config

	mu        sync.Mutex
	status    *health.Status
	listeners map[int]health.FailureListener
	nextID    int
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewSinkHealth builds a SinkHealth polling checker on config.Interval.
func NewSinkHealth(checker health.Checker, config health.Config) *SinkHealth {
	return &SinkHealth{
		checker:   checker,
		config:    config,
		status:    health.NewStatus(),
		listeners: make(map[int]health.FailureListener),
	}
}

// Start begins polling the checker until Close is called.
func (s *SinkHealth) Start(ctx context.Context) error {
	s.mu.Lock()
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	s.stopCh = stopCh
	s.doneCh = doneCh
	s.mu.Unlock()

	go s.run(ctx, stopCh, doneCh)
	return nil
}

// Close stops polling and waits for the loop to exit.
func (s *SinkHealth) Close(ctx context.Context) error {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	if stopCh == nil {
		return nil
	}
	close(stopCh)
	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *SinkHealth) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	interval := s.config.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.poll(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *SinkHealth) poll(ctx context.Context) {
	result := s.checker.Check(ctx)

	s.mu.Lock()
	wasHealthy := s.status.Healthy
	if s.status.InStartPeriod(s.config) {
		s.mu.Unlock()
		return
	}
	s.status.Update(result, s.config)
	nowHealthy := s.status.Healthy
	listeners := make([]health.FailureListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	if wasHealthy && !nowHealthy {
		for _, l := range listeners {
			l.OnFailure()
		}
	} else if !wasHealthy && nowHealthy {
		for _, l := range listeners {
			l.OnRecovered()
		}
	}
}

// Status reports the aggregate health of the sink.
func (s *SinkHealth) Status() health.AggregateStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Healthy {
		return health.Healthy
	}
	return health.Unhealthy
}

// Subscribe registers l for failure/recovery notifications.
func (s *SinkHealth) Subscribe(l health.FailureListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
