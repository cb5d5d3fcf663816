package partition

import (
	"github.com/flowmesh/partitiond/pkg/exporter"
	"github.com/flowmesh/partitiond/pkg/logstorage"
	"github.com/flowmesh/partitiond/pkg/snapshot"
	"github.com/flowmesh/partitiond/pkg/streamproc"
)

// Context is the actor-confined state: identity, role, term, the
// currently installed service handles, and the flags that gate stream
// processing. It is created when the actor starts, mutated only from the
// actor's task loop (see the concurrency note on TransitionEngine.Execute
// in engine.go), and discarded once closeAsync drains the final
// transition to Inactive.
type Context struct {
	Identity Identity
	Role     Role
	Term     uint64

	LogStorage          *logstorage.Binding
	StreamProcessor     *streamproc.Processor
	SnapshotDirector    *snapshot.Director
	SnapshotReplication *snapshot.ReplicationSource
	ExporterDirector    *exporter.Director
	CompactionHook      *CompactionHook

	DiskSpaceAvailable bool
	ProcessingPaused   bool
	ServicesInstalled  bool
}

// newContext builds a fresh Context for identity. DiskSpaceAvailable
// starts true, and stays true across a subsequent onDiskSpaceAvailable
// call rather than ever flipping back to false on that path.
func newContext(identity Identity) *Context {
	return &Context{
		Identity:           identity,
		Role:               RoleUnknown,
		DiskSpaceAvailable: true,
	}
}

// shouldProcess is the sole authority the disk-space and pause paths
// consult before resuming the stream processor.
func (c *Context) shouldProcess() bool {
	return c.DiskSpaceAvailable && !c.ProcessingPaused
}
