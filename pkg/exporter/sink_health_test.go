package exporter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowmesh/partitiond/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	healthy int32
}

func (f *fakeChecker) Check(ctx context.Context) health.Result {
	h := atomic.LoadInt32(&f.healthy) != 0
	return health.Result{Healthy: h, CheckedAt: time.Now()}
}

func (f *fakeChecker) Type() health.CheckType { return health.CheckTypeHTTP }

type recordingListener struct {
	failures  int32
	recovered int32
}

func (r *recordingListener) OnFailure()   { atomic.AddInt32(&r.failures, 1) }
func (r *recordingListener) OnRecovered() { atomic.AddInt32(&r.recovered, 1) }

func TestSinkHealth_FlipsUnhealthyAfterRetries(t *testing.T) {
	checker := &fakeChecker{healthy: 0}
	cfg := health.Config{Interval: 5 * time.Millisecond, Retries: 2}
	sh := NewSinkHealth(checker, cfg)
	listener := &recordingListener{}
	sh.Subscribe(listener)

	require.NoError(t, sh.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sh.Close(context.Background()))

	assert.Equal(t, health.Unhealthy, sh.Status())
	assert.GreaterOrEqual(t, atomic.LoadInt32(&listener.failures), int32(1))
}

func TestSinkHealth_RecoversAfterSuccess(t *testing.T) {
	checker := &fakeChecker{healthy: 0}
	cfg := health.Config{Interval: 5 * time.Millisecond, Retries: 1}
	sh := NewSinkHealth(checker, cfg)

	require.NoError(t, sh.Start(context.Background()))
	time.Sleep(15 * time.Millisecond)
	assert.Equal(t, health.Unhealthy, sh.Status())

	atomic.StoreInt32(&checker.healthy, 1)
	time.Sleep(15 * time.Millisecond)
	require.NoError(t, sh.Close(context.Background()))

	assert.Equal(t, health.Healthy, sh.Status())
}
