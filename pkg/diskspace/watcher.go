package diskspace

import (
	"sync"
	"syscall"
	"time"

	"github.com/flowmesh/partitiond/pkg/log"
	"github.com/rs/zerolog"
)

// DefaultThresholdBytes is the free-space floor below which a volume is
// considered unavailable for new writes.
const DefaultThresholdBytes uint64 = 512 * 1024 * 1024

// Watcher samples free space on Path on an interval and invokes OnAvailable
// or OnNotAvailable for the first sample and whenever the sampled state
// changes.
type Watcher struct {
	Path           string
	ThresholdBytes uint64
	Interval       time.Duration
	OnAvailable    func()
	OnNotAvailable func()

	logger zerolog.Logger
	mu     sync.Mutex
	avail  bool
	first  bool
	stopCh chan struct{}
	doneCh chan struct{}

	statfs func(path string, buf *syscall.Statfs_t) error
}

// New builds a Watcher for path with the given threshold and poll interval.
// A zero threshold uses DefaultThresholdBytes and a zero interval uses 10s.
func New(path string, thresholdBytes uint64, interval time.Duration) *Watcher {
	if thresholdBytes == 0 {
		thresholdBytes = DefaultThresholdBytes
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Watcher{
		Path:           path,
		ThresholdBytes: thresholdBytes,
		Interval:       interval,
		logger:         log.WithComponent("diskspace"),
		avail:          true,
		first:          true,
		statfs:         syscall.Statfs,
	}
}

// Start begins the sampling loop.
func (w *Watcher) Start() {
	w.mu.Lock()
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	w.stopCh = stopCh
	w.doneCh = doneCh
	w.mu.Unlock()

	go w.run(stopCh, doneCh)
}

// Close stops the sampling loop and waits for it to exit.
func (w *Watcher) Close() {
	w.mu.Lock()
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

func (w *Watcher) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.sample()

	for {
		select {
		case <-ticker.C:
			w.sample()
		case <-stopCh:
			return
		}
	}
}

func (w *Watcher) sample() {
	free, err := w.freeBytes()
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.Path).Msg("failed to sample free disk space")
		return
	}

	available := free >= w.ThresholdBytes

	w.mu.Lock()
	changed := w.first || available != w.avail
	w.avail = available
	w.first = false
	w.mu.Unlock()

	if !changed {
		return
	}

	w.logger.Info().Bool("available", available).Uint64("free_bytes", free).Msg("disk space availability changed")
	if available {
		if w.OnAvailable != nil {
			w.OnAvailable()
		}
	} else {
		if w.OnNotAvailable != nil {
			w.OnNotAvailable()
		}
	}
}

func (w *Watcher) freeBytes() (uint64, error) {
	var stat syscall.Statfs_t
	if err := w.statfs(w.Path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// Available reports the last sampled availability.
func (w *Watcher) Available() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.avail
}
