package partition

import (
	"context"
	"time"

	"github.com/flowmesh/partitiond/pkg/exporter"
	"github.com/flowmesh/partitiond/pkg/health"
	"github.com/flowmesh/partitiond/pkg/logstorage"
	"github.com/flowmesh/partitiond/pkg/snapshot"
	"github.com/flowmesh/partitiond/pkg/streamproc"
)

// Step is one idempotent installable unit, a (prepare, install) pair.
// Prepare tears down whatever this step last installed; Install builds
// and wires a fresh handle into the Context.
type Step interface {
	Name() string
	Prepare(ctx context.Context, pc *Context) error
	Install(ctx context.Context, pc *Context) error
}

// Deps are the external collaborators shared by every step across every
// role transition: the shared log-storage Store, the stream-processor
// Source, the exporter Sink and the snapshot Manifest/interval
// configuration. Construct once per Actor; steps build partition-scoped
// handles over them on each install.
type Deps struct {
	LogStore         *logstorage.Store
	StreamSource     streamproc.Source
	ExportSink       exporter.Sink
	SnapshotManifest *snapshot.Manifest
	Snapshotter      snapshot.Snapshotter

	// SinkHealthChecker is an optional reachability probe for ExportSink's
	// backing endpoint (e.g. a health.TCPChecker or health.HTTPChecker
	// pointed at the sink's address). When set, exporterDirectorStep polls
	// it while leader and folds the result into the partition's health
	// tree; left nil, only export errors themselves surface sink trouble.
	SinkHealthChecker health.Checker
	SinkHealthConfig  health.Config

	// Supervisor is filled in by NewActor; steps register sidecar health
	// components under it rather than holding their own reference to the
	// actor.
	Supervisor *health.Supervisor

	SnapshotInterval    time.Duration
	ExportInterval      time.Duration
	CompactionInterval  time.Duration
	CompactionRetention uint64
}

// recipeFor returns the ordered steps for target, or nil for Inactive
// (an inactive partition installs nothing).
func recipeFor(target Role, deps *Deps) []Step {
	switch target {
	case RoleLeader:
		return []Step{
			&logStorageStep{deps: deps},
			&streamProcessorStep{deps: deps, mode: streamproc.Processing},
			&snapshotDirectorStep{deps: deps},
			&exporterDirectorStep{deps: deps},
			&compactionHookStep{deps: deps},
		}
	case RoleFollower:
		return []Step{
			&logStorageStep{deps: deps},
			&streamProcessorStep{deps: deps, mode: streamproc.Replay},
			&snapshotReplicationStep{deps: deps},
		}
	default:
		return nil
	}
}

type logStorageStep struct{ deps *Deps }

func (s *logStorageStep) Name() string { return "log-storage" }

func (s *logStorageStep) Install(ctx context.Context, pc *Context) error {
	b := logstorage.NewBinding(s.deps.LogStore, pc.Identity.PartitionID)
	if err := b.Start(ctx); err != nil {
		return err
	}
	pc.LogStorage = b
	return nil
}

func (s *logStorageStep) Prepare(ctx context.Context, pc *Context) error {
	if pc.LogStorage == nil {
		return nil
	}
	err := pc.LogStorage.Close(ctx)
	pc.LogStorage = nil
	return err
}

type streamProcessorStep struct {
	deps *Deps
	mode streamproc.Mode
}

func (s *streamProcessorStep) Name() string { return "stream-processor" }

func (s *streamProcessorStep) Install(ctx context.Context, pc *Context) error {
	p := streamproc.New(s.mode, pc.LogStorage, s.deps.StreamSource)
	if err := p.Start(ctx, !pc.shouldProcess()); err != nil {
		return err
	}
	pc.StreamProcessor = p
	return nil
}

func (s *streamProcessorStep) Prepare(ctx context.Context, pc *Context) error {
	if pc.StreamProcessor == nil {
		return nil
	}
	err := pc.StreamProcessor.Close(ctx)
	pc.StreamProcessor = nil
	return err
}

type snapshotDirectorStep struct{ deps *Deps }

func (s *snapshotDirectorStep) Name() string { return "snapshot-director" }

func (s *snapshotDirectorStep) Install(ctx context.Context, pc *Context) error {
	d := snapshot.NewDirector(pc.Identity.PartitionID, s.deps.Snapshotter, s.deps.SnapshotManifest, s.deps.SnapshotInterval)
	if err := d.Start(ctx); err != nil {
		return err
	}
	pc.SnapshotDirector = d
	return nil
}

func (s *snapshotDirectorStep) Prepare(ctx context.Context, pc *Context) error {
	if pc.SnapshotDirector == nil {
		return nil
	}
	err := pc.SnapshotDirector.Close(ctx)
	pc.SnapshotDirector = nil
	return err
}

type exporterDirectorStep struct {
	deps       *Deps
	sinkHealth *exporter.SinkHealth
}

func (s *exporterDirectorStep) Name() string { return "exporter-director" }

func (s *exporterDirectorStep) Install(ctx context.Context, pc *Context) error {
	d := exporter.NewDirector(s.deps.ExportSink, s.deps.ExportInterval)
	if err := d.Start(ctx); err != nil {
		return err
	}
	pc.ExporterDirector = d

	if pc.StreamProcessor != nil {
		pc.StreamProcessor.SetOffsetSink(d.AdvanceOffset)
	}

	if s.deps.SinkHealthChecker != nil && s.deps.Supervisor != nil {
		sh := exporter.NewSinkHealth(s.deps.SinkHealthChecker, s.deps.SinkHealthConfig)
		if err := sh.Start(ctx); err != nil {
			return err
		}
		s.sinkHealth = sh
		s.deps.Supervisor.Register("export-sink", sh)
	}
	return nil
}

func (s *exporterDirectorStep) Prepare(ctx context.Context, pc *Context) error {
	if s.sinkHealth != nil {
		s.deps.Supervisor.Deregister("export-sink")
		_ = s.sinkHealth.Close(ctx)
		s.sinkHealth = nil
	}

	if pc.StreamProcessor != nil {
		pc.StreamProcessor.SetOffsetSink(nil)
	}

	if pc.ExporterDirector == nil {
		return nil
	}
	err := pc.ExporterDirector.Close(ctx)
	pc.ExporterDirector = nil
	return err
}

type snapshotReplicationStep struct{ deps *Deps }

func (s *snapshotReplicationStep) Name() string { return "snapshot-replication" }

func (s *snapshotReplicationStep) Install(ctx context.Context, pc *Context) error {
	r := snapshot.NewReplicationSource(pc.Identity.PartitionID, s.deps.SnapshotManifest)
	if err := r.Start(ctx); err != nil {
		return err
	}
	pc.SnapshotReplication = r
	return nil
}

func (s *snapshotReplicationStep) Prepare(ctx context.Context, pc *Context) error {
	if pc.SnapshotReplication == nil {
		return nil
	}
	err := pc.SnapshotReplication.Close(ctx)
	pc.SnapshotReplication = nil
	return err
}

// compactionHookStep is leader-only: it periodically drops log-storage
// index mappings more than CompactionRetention below the last index the
// stream processor recorded. The exporter's progress is not consulted.
type compactionHookStep struct{ deps *Deps }

func (s *compactionHookStep) Name() string { return "compaction-hook" }

func (s *compactionHookStep) Install(ctx context.Context, pc *Context) error {
	h := newCompactionHook(pc.LogStorage, s.deps.CompactionRetention, s.deps.CompactionInterval)
	h.Start()
	pc.CompactionHook = h
	return nil
}

func (s *compactionHookStep) Prepare(ctx context.Context, pc *Context) error {
	if pc.CompactionHook == nil {
		return nil
	}
	pc.CompactionHook.Close()
	pc.CompactionHook = nil
	return nil
}

// CompactionHook is the ticker-driven log-storage compactor installed by
// compactionHookStep. It is grounded on the same start/stop ticker shape
// as streamproc.Processor and snapshot.Director rather than on anything
// new, since it is the same "periodic maintenance sidecar" pattern.
type CompactionHook struct {
	binding  *logstorage.Binding
	retain   uint64
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newCompactionHook(binding *logstorage.Binding, retain uint64, interval time.Duration) *CompactionHook {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CompactionHook{binding: binding, retain: retain, interval: interval}
}

func (h *CompactionHook) Start() {
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})
	go h.run()
}

func (h *CompactionHook) Close() {
	if h.stopCh == nil {
		return
	}
	close(h.stopCh)
	<-h.doneCh
}

func (h *CompactionHook) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.compactOnce()
		case <-h.stopCh:
			return
		}
	}
}

func (h *CompactionHook) compactOnce() {
	if h.binding == nil {
		return
	}
	last, err := h.binding.LastAppliedIndex()
	if err != nil || last <= h.retain {
		return
	}
	_, _ = h.binding.Compact(last - h.retain)
}
