package partition

import (
	"context"

	"github.com/flowmesh/partitiond/pkg/logstorage"
)

// Listener is notified when the partition successfully installs as
// leader or follower. Listeners are registered once at startup and
// retained for the actor's lifetime; any error returned while the
// partition is still at the triggering term is treated as an install
// failure.
type Listener interface {
	OnBecomingLeader(ctx context.Context, partitionID uint32, term uint64, logStream *logstorage.Binding) error
	OnBecomingFollower(ctx context.Context, partitionID uint32, term uint64) error
}

// ListenerFuncs adapts two plain functions to a Listener for callers that
// only care about one of the two edges.
type ListenerFuncs struct {
	OnBecomingLeaderFunc   func(ctx context.Context, partitionID uint32, term uint64, logStream *logstorage.Binding) error
	OnBecomingFollowerFunc func(ctx context.Context, partitionID uint32, term uint64) error
}

func (f ListenerFuncs) OnBecomingLeader(ctx context.Context, partitionID uint32, term uint64, logStream *logstorage.Binding) error {
	if f.OnBecomingLeaderFunc == nil {
		return nil
	}
	return f.OnBecomingLeaderFunc(ctx, partitionID, term, logStream)
}

func (f ListenerFuncs) OnBecomingFollower(ctx context.Context, partitionID uint32, term uint64) error {
	if f.OnBecomingFollowerFunc == nil {
		return nil
	}
	return f.OnBecomingFollowerFunc(ctx, partitionID, term)
}
