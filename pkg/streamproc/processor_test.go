package streamproc

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowmesh/partitiond/pkg/logstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	drains int
}

func (s *countingSource) Drain(ctx context.Context, mode Mode) (uint64, error) {
	s.drains++
	return uint64(s.drains), nil
}

func TestProcessor_PauseResumeIdempotent(t *testing.T) {
	p := New(Processing, nil, nil)

	p.PauseProcessing()
	p.PauseProcessing()
	assert.True(t, p.Paused())

	p.ResumeProcessing()
	p.ResumeProcessing()
	assert.False(t, p.Paused())
}

func TestProcessor_StartsPausedWhenRequested(t *testing.T) {
	p := New(Processing, nil, nil)
	p.tick = 10 * time.Millisecond
	require.NoError(t, p.Start(context.Background(), true))
	defer func() { _ = p.Close(context.Background()) }()

	assert.True(t, p.Paused())
}

func TestProcessor_DoesNotDrainWhilePaused(t *testing.T) {
	source := &countingSource{}
	p := New(Processing, nil, source)
	p.tick = 5 * time.Millisecond
	require.NoError(t, p.Start(context.Background(), true))
	defer func() { _ = p.Close(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, source.drains)
}

func TestProcessor_DrainsWhenNotPaused(t *testing.T) {
	source := &countingSource{}
	p := New(Processing, nil, source)
	p.tick = 5 * time.Millisecond
	require.NoError(t, p.Start(context.Background(), false))
	defer func() { _ = p.Close(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	assert.Greater(t, source.drains, 0)
}

func TestProcessor_CloseStopsLoop(t *testing.T) {
	source := &countingSource{}
	p := New(Processing, nil, source)
	p.tick = 5 * time.Millisecond
	require.NoError(t, p.Start(context.Background(), false))

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Close(context.Background()))

	drainsAtClose := source.drains
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, drainsAtClose, source.drains)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "processing", Processing.String())
	assert.Equal(t, "replay", Replay.String())
}

func TestProcessor_RecordsAppliedOffsetOnBinding(t *testing.T) {
	store, err := logstorage.Open(filepath.Join(t.TempDir(), "log.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureBucket(7))
	binding := logstorage.NewBinding(store, 7)

	source := &countingSource{}
	p := New(Processing, binding, source)
	p.tick = 5 * time.Millisecond
	require.NoError(t, p.Start(context.Background(), false))
	defer func() { _ = p.Close(context.Background()) }()

	require.Eventually(t, func() bool {
		last, err := binding.LastAppliedIndex()
		return err == nil && last > 0
	}, 200*time.Millisecond, 5*time.Millisecond)
}

func TestProcessor_ForwardsOffsetToSink(t *testing.T) {
	source := &countingSource{}
	p := New(Processing, nil, source)
	p.tick = 5 * time.Millisecond

	var mu sync.Mutex
	var lastSeen uint64
	var calls int32
	p.SetOffsetSink(func(offset uint64) {
		mu.Lock()
		lastSeen = offset
		mu.Unlock()
		atomic.AddInt32(&calls, 1)
	})

	require.NoError(t, p.Start(context.Background(), false))
	defer func() { _ = p.Close(context.Background()) }()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) > 0
	}, 200*time.Millisecond, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, lastSeen, uint64(0))
}

func TestProcessor_SetOffsetSinkNilStopsForwarding(t *testing.T) {
	source := &countingSource{}
	p := New(Processing, nil, source)
	p.tick = 5 * time.Millisecond

	var calls int32
	p.SetOffsetSink(func(uint64) { atomic.AddInt32(&calls, 1) })
	require.NoError(t, p.Start(context.Background(), false))
	defer func() { _ = p.Close(context.Background()) }()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) > 0
	}, 200*time.Millisecond, 5*time.Millisecond)

	p.SetOffsetSink(nil)
	seenAtClear := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, seenAtClear, atomic.LoadInt32(&calls))
}
