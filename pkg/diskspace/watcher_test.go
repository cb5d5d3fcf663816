package diskspace

import (
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatcher_FiresOnAvailableOnFirstSample(t *testing.T) {
	w := New("/tmp", 100, 5*time.Millisecond)
	w.statfs = func(path string, buf *syscall.Statfs_t) error {
		buf.Bavail = 1000
		buf.Bsize = 1
		return nil
	}

	var available int32
	w.OnAvailable = func() { atomic.StoreInt32(&available, 1) }

	w.Start()
	time.Sleep(20 * time.Millisecond)
	w.Close()

	assert.Equal(t, int32(1), atomic.LoadInt32(&available))
	assert.True(t, w.Available())
}

func TestWatcher_FiresOnNotAvailableWhenBelowThreshold(t *testing.T) {
	w := New("/tmp", 1000, 5*time.Millisecond)
	w.statfs = func(path string, buf *syscall.Statfs_t) error {
		buf.Bavail = 10
		buf.Bsize = 1
		return nil
	}

	var notAvailable int32
	w.OnNotAvailable = func() { atomic.StoreInt32(&notAvailable, 1) }

	w.Start()
	time.Sleep(20 * time.Millisecond)
	w.Close()

	assert.Equal(t, int32(1), atomic.LoadInt32(&notAvailable))
	assert.False(t, w.Available())
}

func TestWatcher_OnlyFiresOnTransition(t *testing.T) {
	w := New("/tmp", 100, 5*time.Millisecond)
	w.statfs = func(path string, buf *syscall.Statfs_t) error {
		buf.Bavail = 1000
		buf.Bsize = 1
		return nil
	}

	var calls int32
	w.OnAvailable = func() { atomic.AddInt32(&calls, 1) }

	w.Start()
	time.Sleep(30 * time.Millisecond)
	w.Close()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWatcher_DefaultsAppliedForZeroValues(t *testing.T) {
	w := New("/tmp", 0, 0)
	assert.Equal(t, DefaultThresholdBytes, w.ThresholdBytes)
	assert.Equal(t, 10*time.Second, w.Interval)
}
