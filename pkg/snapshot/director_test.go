package snapshot

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshotter struct {
	calls  int32
	failOn int32 // if > 0, the call at this count fails
}

func (f *fakeSnapshotter) Snapshot() error {
	n := atomic.AddInt32(&f.calls, 1)
	if f.failOn > 0 && n == f.failOn {
		return assert.AnError
	}
	return nil
}

func openTestManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := OpenManifest(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestDirector_ForceSnapshotRecordsManifest(t *testing.T) {
	raft := &fakeSnapshotter{}
	manifest := openTestManifest(t)
	d := NewDirector(1, raft, manifest, time.Hour)

	require.NoError(t, d.ForceSnapshot())
	assert.EqualValues(t, 1, raft.calls)

	_, at, err := manifest.Last(1)
	require.NoError(t, err)
	assert.False(t, at.IsZero())
}

func TestDirector_ForceSnapshotPropagatesError(t *testing.T) {
	raft := &fakeSnapshotter{failOn: 1}
	d := NewDirector(1, raft, nil, time.Hour)

	err := d.ForceSnapshot()
	assert.Error(t, err)
}

func TestDirector_TicksPeriodically(t *testing.T) {
	raft := &fakeSnapshotter{}
	d := NewDirector(1, raft, nil, 5*time.Millisecond)

	require.NoError(t, d.Start(context.Background()))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, d.Close(context.Background()))

	assert.Greater(t, int(atomic.LoadInt32(&raft.calls)), 0)
}

func TestManifest_LastOnEmptyPartition(t *testing.T) {
	manifest := openTestManifest(t)
	index, at, err := manifest.Last(42)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), index)
	assert.True(t, at.IsZero())
}
