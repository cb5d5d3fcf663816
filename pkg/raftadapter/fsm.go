package raftadapter

import (
	"io"

	"github.com/hashicorp/raft"
)

// FSM is the raft.FSM this module drives Raft with. Applying a committed
// record to partition state is delegated entirely to the installed
// streamproc.Source, outside Raft's own log; the FSM itself only has to
// exist so Raft has something to call Apply/Snapshot/Restore on, and it
// tracks nothing beyond the log index needed to answer a snapshot.
type FSM struct {
	lastIndex uint64
}

// NewFSM builds an empty FSM.
func NewFSM() *FSM {
	return &FSM{}
}

// Apply records the committed index and otherwise does nothing: the
// stream processor reads committed records through its own Source, not
// through Raft's FSM.Apply.
func (f *FSM) Apply(log *raft.Log) interface{} {
	f.lastIndex = log.Index
	return nil
}

// Snapshot returns a trivial snapshot carrying only the last applied
// index, since durable partition state lives in logstorage and the
// stream processor's downstream store, not in the FSM.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{lastIndex: f.lastIndex}, nil
}

// Restore is a no-op: there is nothing in the FSM's own state to rebuild
// from a snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	return rc.Close()
}

type fsmSnapshot struct {
	lastIndex uint64
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
