package logstorage

import "context"

// Binding is the log-storage handle a partition's Context carries: the
// index-mapping store plus the partition it's scoped to. It is installed
// first in both the leader and follower recipes since every other step
// depends on the log being wired up.
type Binding struct {
	store       *Store
	partitionID uint32
}

// NewBinding builds the log-storage binding over a partition's slice of a
// shared Store.
func NewBinding(store *Store, partitionID uint32) *Binding {
	return &Binding{store: store, partitionID: partitionID}
}

// Start ensures the partition's bucket exists.
func (b *Binding) Start(ctx context.Context) error {
	return b.store.EnsureBucket(b.partitionID)
}

// Close is a no-op: the underlying Store is shared across the partition's
// whole lifetime and outlives any single role's installation.
func (b *Binding) Close(ctx context.Context) error {
	return nil
}

// RecordApplied maps a Raft log index to the stream processor's offset.
func (b *Binding) RecordApplied(logIndex, offset uint64) error {
	return b.store.PutOffset(b.partitionID, logIndex, offset)
}

// LastAppliedIndex returns the most recently recorded Raft log index.
func (b *Binding) LastAppliedIndex() (uint64, error) {
	return b.store.LastIndex(b.partitionID)
}

// Compact drops mappings at or below upTo.
func (b *Binding) Compact(upTo uint64) (int, error) {
	return b.store.Compact(b.partitionID, upTo)
}
