package partition

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowmesh/partitiond/pkg/health"
	"github.com/flowmesh/partitiond/pkg/streamproc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type incrementingSource struct{ n int32 }

func (s *incrementingSource) Drain(ctx context.Context, mode streamproc.Mode) (uint64, error) {
	return uint64(atomic.AddInt32(&s.n, 1)), nil
}

type recordingSink struct {
	mu      sync.Mutex
	offsets []uint64
}

func (s *recordingSink) Export(ctx context.Context, upTo uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, upTo)
	return nil
}

func (s *recordingSink) last() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.offsets) == 0 {
		return 0
	}
	return s.offsets[len(s.offsets)-1]
}

type alwaysHealthyChecker struct{}

func (alwaysHealthyChecker) Check(ctx context.Context) health.Result {
	return health.Result{Healthy: true}
}

func (alwaysHealthyChecker) Type() health.CheckType { return health.CheckTypeTCP }

func TestRecipeFor(t *testing.T) {
	deps := &Deps{}

	leader := recipeFor(RoleLeader, deps)
	require.Len(t, leader, 5)
	names := stepNames(leader)
	assert.Equal(t, []string{"log-storage", "stream-processor", "snapshot-director", "exporter-director", "compaction-hook"}, names)

	follower := recipeFor(RoleFollower, deps)
	require.Len(t, follower, 3)
	assert.Equal(t, []string{"log-storage", "stream-processor", "snapshot-replication"}, stepNames(follower))

	assert.Nil(t, recipeFor(RoleInactive, deps))
	assert.Nil(t, recipeFor(RoleUnknown, deps))
}

func stepNames(steps []Step) []string {
	var names []string
	for _, s := range steps {
		names = append(names, s.Name())
	}
	return names
}

func TestLogStorageStep_InstallAndPrepare(t *testing.T) {
	deps := newTestDeps(t)
	step := &logStorageStep{deps: deps}
	pc := newContext(Identity{NodeID: "n1", PartitionID: 3})

	require.NoError(t, step.Install(context.Background(), pc))
	require.NotNil(t, pc.LogStorage)

	require.NoError(t, step.Prepare(context.Background(), pc))
	assert.Nil(t, pc.LogStorage)

	// Prepare on an already-cleared Context is a no-op, not an error.
	require.NoError(t, step.Prepare(context.Background(), pc))
}

func TestStreamProcessorStep_InstallHonorsShouldProcess(t *testing.T) {
	deps := newTestDeps(t)
	logStep := &logStorageStep{deps: deps}
	pc := newContext(Identity{NodeID: "n1", PartitionID: 3})
	require.NoError(t, logStep.Install(context.Background(), pc))

	pc.ProcessingPaused = true
	step := &streamProcessorStep{deps: deps, mode: streamproc.Processing}
	require.NoError(t, step.Install(context.Background(), pc))
	require.NotNil(t, pc.StreamProcessor)
	assert.True(t, pc.StreamProcessor.Paused())

	require.NoError(t, step.Prepare(context.Background(), pc))
	assert.Nil(t, pc.StreamProcessor)
}

func TestSnapshotDirectorStep_InstallAndPrepare(t *testing.T) {
	deps := newTestDeps(t)
	step := &snapshotDirectorStep{deps: deps}
	pc := newContext(Identity{NodeID: "n1", PartitionID: 3})

	require.NoError(t, step.Install(context.Background(), pc))
	require.NotNil(t, pc.SnapshotDirector)

	require.NoError(t, step.Prepare(context.Background(), pc))
	assert.Nil(t, pc.SnapshotDirector)
}

func TestExporterDirectorStep_InstallAndPrepare(t *testing.T) {
	deps := newTestDeps(t)
	step := &exporterDirectorStep{deps: deps}
	pc := newContext(Identity{NodeID: "n1", PartitionID: 3})

	require.NoError(t, step.Install(context.Background(), pc))
	require.NotNil(t, pc.ExporterDirector)

	require.NoError(t, step.Prepare(context.Background(), pc))
	assert.Nil(t, pc.ExporterDirector)
}

func TestExporterDirectorStep_RegistersSinkHealth(t *testing.T) {
	deps := newTestDeps(t)
	deps.Supervisor = health.NewSupervisor("n1", 3)
	deps.SinkHealthChecker = alwaysHealthyChecker{}

	step := &exporterDirectorStep{deps: deps}
	pc := newContext(Identity{NodeID: "n1", PartitionID: 3})

	require.NoError(t, step.Install(context.Background(), pc))
	require.NotNil(t, step.sinkHealth)

	require.NoError(t, step.Prepare(context.Background(), pc))
	assert.Nil(t, step.sinkHealth)
}

func TestExporterDirectorStep_ForwardsProcessorOffsetToSink(t *testing.T) {
	deps := newTestDeps(t)
	deps.StreamSource = &incrementingSource{}
	sink := &recordingSink{}
	deps.ExportSink = sink
	deps.ExportInterval = 5 * time.Millisecond

	pc := newContext(Identity{NodeID: "n1", PartitionID: 3})

	logStep := &logStorageStep{deps: deps}
	require.NoError(t, logStep.Install(context.Background(), pc))

	procStep := &streamProcessorStep{deps: deps, mode: streamproc.Processing}
	require.NoError(t, procStep.Install(context.Background(), pc))

	exportStep := &exporterDirectorStep{deps: deps}
	require.NoError(t, exportStep.Install(context.Background(), pc))

	require.Eventually(t, func() bool {
		return sink.last() > 0
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, exportStep.Prepare(context.Background(), pc))
	require.NoError(t, procStep.Prepare(context.Background(), pc))
}

func TestSnapshotReplicationStep_InstallAndPrepare(t *testing.T) {
	deps := newTestDeps(t)
	step := &snapshotReplicationStep{deps: deps}
	pc := newContext(Identity{NodeID: "n1", PartitionID: 3})

	require.NoError(t, step.Install(context.Background(), pc))
	require.NotNil(t, pc.SnapshotReplication)

	require.NoError(t, step.Prepare(context.Background(), pc))
	assert.Nil(t, pc.SnapshotReplication)
}

func TestCompactionHookStep_InstallAndPrepare(t *testing.T) {
	deps := newTestDeps(t)
	deps.CompactionInterval = 0 // exercise the step's own default fallback

	logStep := &logStorageStep{deps: deps}
	pc := newContext(Identity{NodeID: "n1", PartitionID: 3})
	require.NoError(t, logStep.Install(context.Background(), pc))

	step := &compactionHookStep{deps: deps}
	require.NoError(t, step.Install(context.Background(), pc))
	require.NotNil(t, pc.CompactionHook)

	require.NoError(t, step.Prepare(context.Background(), pc))
	assert.Nil(t, pc.CompactionHook)
}
