package snapshot

import (
	"context"
	"time"
)

// ReplicationSource is the follower-only counterpart to Director. The
// actual snapshot transfer is owned entirely by hashicorp/raft's
// InstallSnapshot RPC; this step exists so the follower recipe has a
// symmetric handle to install/uninstall and a place to record that a
// snapshot was received, via Observe.
type ReplicationSource struct {
	partitionID uint32
	manifest    *Manifest
}

// NewReplicationSource builds a replication source for partitionID.
func NewReplicationSource(partitionID uint32, manifest *Manifest) *ReplicationSource {
	return &ReplicationSource{partitionID: partitionID, manifest: manifest}
}

// Start is a no-op: there is nothing to start, raft delivers snapshots on
// its own schedule.
func (r *ReplicationSource) Start(ctx context.Context) error {
	return nil
}

// Close is a no-op for the same reason.
func (r *ReplicationSource) Close(ctx context.Context) error {
	return nil
}

// Observe records that a snapshot at the given index was installed by
// Raft, for operators inspecting the manifest.
func (r *ReplicationSource) Observe(index uint64) {
	if r.manifest == nil {
		return
	}
	_ = r.manifest.Record(r.partitionID, index, time.Now())
}
