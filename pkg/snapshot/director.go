package snapshot

import (
	"context"
	"sync"
	"time"
)

// Snapshotter is the subset of raftadapter.Adapter the director needs;
// kept as a narrow interface so tests can supply a fake instead of
// standing up a real Raft node.
type Snapshotter interface {
	Snapshot() error
}

// Director periodically forces a Raft snapshot on a ticker, and exposes
// ForceSnapshot for an operator-triggered snapshot call. It is a
// leader-only step.
type Director struct {
	partitionID uint32
	raft        Snapshotter
	manifest    *Manifest
	interval    time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDirector builds a director for partitionID, snapshotting via raft on
// the given interval.
func NewDirector(partitionID uint32, raft Snapshotter, manifest *Manifest, interval time.Duration) *Director {
	return &Director{partitionID: partitionID, raft: raft, manifest: manifest, interval: interval}
}

// Start begins the periodic snapshot ticker.
func (d *Director) Start(ctx context.Context) error {
	d.mu.Lock()
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	d.stopCh = stopCh
	d.doneCh = doneCh
	d.mu.Unlock()

	go d.run(ctx, stopCh, doneCh)
	return nil
}

// Close stops the ticker and waits for the loop to exit.
func (d *Director) Close(ctx context.Context) error {
	d.mu.Lock()
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

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

func (d *Director) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	interval := d.interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = d.ForceSnapshot()
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ForceSnapshot asks Raft for an immediate snapshot and records its time
// in the manifest. Snapshotter does not report the snapshot's log index,
// so the recorded index is always 0. Errors from the underlying Raft call
// are returned; manifest
// write failures are swallowed since they don't affect durability, only
// the convenience bookkeeping of "when did this last happen".
func (d *Director) ForceSnapshot() error {
	if err := d.raft.Snapshot(); err != nil {
		return err
	}
	if d.manifest != nil {
		_ = d.manifest.Record(d.partitionID, 0, time.Now())
	}
	return nil
}
