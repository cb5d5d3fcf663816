package streamproc

import (
	"context"
	"sync"
	"time"

	"github.com/flowmesh/partitiond/pkg/logstorage"
)

// Mode selects whether the processor applies records to live partition
// state (Processing, leader-only) or only advances its position without
// side effects (Replay, follower-only).
type Mode int

const (
	Processing Mode = iota
	Replay
)

func (m Mode) String() string {
	if m == Processing {
		return "processing"
	}
	return "replay"
}

// Source is the external collaborator that actually knows how to fetch
// and apply committed log records; its internals are out of scope here.
type Source interface {
	// Drain is called once per tick while the processor is not paused.
	// It returns the last offset applied, or an error.
	Drain(ctx context.Context, mode Mode) (offset uint64, err error)
}

// Processor is one partition's installed stream processor, present in
// Context only while a leader or follower recipe has it installed.
type Processor struct {
	mode    Mode
	binding *logstorage.Binding
	source  Source
	tick    time.Duration

	mu         sync.Mutex
	paused     bool
	offsetSink func(uint64)
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// New builds a processor in the given mode, recording progress through
// binding and draining via source. A nil source makes Start a no-op drain
// loop, useful for tests that only exercise pause/resume bookkeeping.
func New(mode Mode, binding *logstorage.Binding, source Source) *Processor {
	return &Processor{
		mode:    mode,
		binding: binding,
		source:  source,
		tick:    time.Second,
	}
}

// Mode reports whether this processor applies records or only replays.
func (p *Processor) Mode() Mode {
	return p.mode
}

// Start begins the drain loop, paused or not according to the flags the
// caller already observed on the Context (disk space, explicit pause).
func (p *Processor) Start(ctx context.Context, startPaused bool) error {
	p.mu.Lock()
	p.paused = startPaused
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	p.stopCh = stopCh
	p.doneCh = doneCh
	p.mu.Unlock()

	go p.run(ctx, stopCh, doneCh)
	return nil
}

// Close stops the drain loop and waits for it to exit.
func (p *Processor) Close(ctx context.Context) error {
	p.mu.Lock()
	stopCh := p.stopCh
	doneCh := p.doneCh
	p.mu.Unlock()

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

func (p *Processor) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.drainOnce(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Processor) drainOnce(ctx context.Context) {
	p.mu.Lock()
	paused := p.paused
	p.mu.Unlock()

	if paused || p.source == nil {
		return
	}

	offset, err := p.source.Drain(ctx, p.mode)
	if err != nil {
		return
	}

	if p.binding != nil {
		// Source.Drain reports a single monotonic high-water mark; there is
		// no separate Raft log index to track here, so it doubles as both
		// halves of the binding's (logIndex, offset) mapping.
		if err := p.binding.RecordApplied(offset, offset); err != nil {
			return
		}
	}

	p.mu.Lock()
	sink := p.offsetSink
	p.mu.Unlock()
	if sink != nil {
		sink(offset)
	}
}

// PauseProcessing is idempotent.
func (p *Processor) PauseProcessing() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
}

// ResumeProcessing is idempotent.
func (p *Processor) ResumeProcessing() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
}

// Paused reports the current pause state, mostly useful for tests.
func (p *Processor) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// SetOffsetSink registers a callback invoked with the drained offset each
// time a record is successfully applied, used by exporterDirectorStep to
// wire the processor's progress into the exporter director once it exists.
// Passing nil removes it.
func (p *Processor) SetOffsetSink(sink func(uint64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offsetSink = sink
}
