package partition

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/flowmesh/partitiond/pkg/events"
	"github.com/flowmesh/partitiond/pkg/health"
	"github.com/flowmesh/partitiond/pkg/log"
	"github.com/flowmesh/partitiond/pkg/metrics"
	"github.com/flowmesh/partitiond/pkg/raftadapter"
	"github.com/flowmesh/partitiond/pkg/streamproc"
	"github.com/google/uuid"
	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrActorClosed is returned to callers who enqueue a request after the
// actor has finished closeAsync's drain.
var ErrActorClosed = errors.New("partition: actor is closed")

// task is one unit of mailbox work. The actor's run loop executes tasks
// one at a time; a task must never block on I/O itself — long operations
// (transition installs, listener fan-out) are spawned as their own
// goroutine and post a continuation task back onto the mailbox when they
// finish, which is how a single-threaded cooperative actor is modeled
// over a plain Go channel.
type task func()

// RaftHandle is the narrow surface the actor needs from the underlying
// Raft partition. *raftadapter.Adapter satisfies it; tests supply a fake
// instead of standing up a real Raft node.
type RaftHandle interface {
	Current() (raftadapter.RoleChange, error)
	Subscribe() (<-chan raftadapter.RoleChange, func())
	StepDown() error
	LastContact() time.Time
	SnapshotStore() raft.SnapshotStore
}

// Actor is the partition controller: a single mailbox serializing every
// role change, health signal and control request for one partition.
type Actor struct {
	identity Identity
	logger   zerolog.Logger

	raft        RaftHandle
	healthProbe *raftadapter.HealthProbe
	supervisor  *health.Supervisor
	servicesProbe *health.ManualProbe
	broker      *events.Broker
	engine      *TransitionEngine
	deps        *Deps

	mailbox chan task

	mu                sync.Mutex
	closed            bool
	pc                *Context
	currentRecipe     []Step
	pendingTransition *future
	listeners         []Listener
	externalFailure   health.FailureListener
	raftUnsubscribe   func()
	stopRoleForward   chan struct{}
	closeOnce         sync.Once
	closeFuture       *future

	// recipeFunc builds the step list for a target role. It defaults to
	// the package-level recipeFor; tests substitute a wrapped version to
	// gate an install mid-flight.
	recipeFunc func(Role, *Deps) []Step
}

// NewActor builds an actor for identity, wired to a raft adapter and the
// deps steps are built from. Listeners passed here are registered once
// and retained for the actor's whole lifetime.
func NewActor(identity Identity, raftAdapter RaftHandle, deps *Deps, listeners []Listener) *Actor {
	logger := log.WithPartition(identity.NodeID, identity.PartitionID)
	supervisor := health.NewSupervisor(identity.NodeID, identity.PartitionID)
	deps.Supervisor = supervisor
	a := &Actor{
		identity:      identity,
		logger:        logger,
		raft:          raftAdapter,
		supervisor:    supervisor,
		servicesProbe: health.NewManualProbe(true),
		broker:        events.NewBroker(),
		engine:        NewTransitionEngine(logger),
		deps:          deps,
		mailbox:       make(chan task, 64),
		listeners:     listeners,
		recipeFunc:    recipeFor,
	}
	a.broker.Start()
	go a.run()
	return a
}

func (a *Actor) run() {
	for t := range a.mailbox {
		t()
	}
}

// enqueue submits t to the mailbox, returning false if the actor has
// already closed.
func (a *Actor) enqueue(t task) bool {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return false
	}
	a.mailbox <- t
	return true
}

func (a *Actor) publish(t events.EventType, msg string) {
	a.broker.Publish(&events.Event{
		ID:      uuid.NewString(),
		Type:    t,
		Message: msg,
	})
}

// Start runs the startup sequence: build the Context, subscribe to raft
// role changes, start the health tree, and drive the node's current role
// as if it had just arrived.
func (a *Actor) Start(ctx context.Context) *future {
	f := newFuture()
	ok := a.enqueue(func() {
		a.pc = newContext(a.identity)

		a.supervisor.Register("services", a.servicesProbe)
		a.healthProbe = raftadapter.NewHealthProbe(a.raft, 10*time.Second)
		a.supervisor.Register("raft", a.healthProbe)
		a.healthProbe.Start()

		// A raft-health failure initiates a transition to Inactive,
		// independent of the supervisor's own aggregate.
		a.healthProbe.Subscribe(health.FailureListenerFuncs{
			OnFailureFunc: func() {
				a.enqueue(func() { a.onNewRoleTarget(ctx, RoleInactive, a.pc.Term) })
			},
		})
		a.supervisor.Subscribe(health.FailureListenerFuncs{
			OnFailureFunc:   func() { a.forwardHealth(true) },
			OnRecoveredFunc: func() { a.forwardHealth(false) },
		})

		roleCh, unsubscribe := a.raft.Subscribe()
		a.raftUnsubscribe = unsubscribe
		a.stopRoleForward = make(chan struct{})
		stopRoleForward := a.stopRoleForward
		go func() {
			for {
				select {
				case rc := <-roleCh:
					a.enqueue(func() { a.onNewRole(ctx, rc) })
				case <-stopRoleForward:
					return
				}
			}
		}()

		current, err := a.raft.Current()
		if err != nil {
			a.logger.Warn().Err(err).Msg("failed to read current raft role at startup")
			f.complete(nil)
			return
		}
		a.onNewRole(ctx, current)
		a.publish(events.EventActorStarted, "")
		f.complete(nil)
	})
	if !ok {
		f.complete(ErrActorClosed)
	}
	return f
}

func (a *Actor) forwardHealth(failed bool) {
	a.mu.Lock()
	listener := a.externalFailure
	a.mu.Unlock()
	if listener == nil {
		return
	}
	if failed {
		listener.OnFailure()
	} else {
		listener.OnRecovered()
	}
}

// CloseAsync is idempotent: every call returns the same future, which
// completes exactly once, after the actor drains any pending transition
// and then transitions to Inactive.
func (a *Actor) CloseAsync(ctx context.Context) *future {
	a.closeOnce.Do(func() {
		a.closeFuture = newFuture()
		ok := a.enqueue(func() {
			a.publish(events.EventActorClosing, "")
			if a.pc == nil {
				a.pc = newContext(a.identity)
			}
			a.awaitPendingThen(func() {
				a.runTransition(ctx, RoleInactive, a.pc.Term, func(err error) {
					a.finishClose(err)
				})
			})
		})
		if !ok {
			a.closeFuture.complete(ErrActorClosed)
		}
	})
	return a.closeFuture
}

func (a *Actor) finishClose(err error) {
	if a.stopRoleForward != nil {
		close(a.stopRoleForward)
	}
	if a.raftUnsubscribe != nil {
		a.raftUnsubscribe()
	}
	if a.healthProbe != nil {
		a.healthProbe.Close()
	}
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	close(a.mailbox)
	a.broker.Stop()
	a.closeFuture.complete(err)
}

// awaitPendingThen runs fn immediately if no transition is in flight, or
// schedules it to run (re-enqueued) once the in-flight one resolves.
func (a *Actor) awaitPendingThen(fn func()) {
	if a.pendingTransition == nil {
		fn()
		return
	}
	pending := a.pendingTransition
	pending.then(func(error) {
		a.enqueue(fn)
	})
}

// onNewRole is the mailbox-side handler for a raft role observation: it
// records the term unconditionally, then applies the collapsing rule.
func (a *Actor) onNewRole(ctx context.Context, rc raftadapter.RoleChange) {
	a.pc.Term = rc.Term
	target, transition := classifyRoleChange(a.pc.Role, classifyRaftState(rc.State))
	if !transition {
		return
	}
	a.onNewRoleTarget(ctx, target, rc.Term)
}

func (a *Actor) onNewRoleTarget(ctx context.Context, target Role, term uint64) {
	a.awaitPendingThen(func() {
		a.runTransition(ctx, target, term, nil)
	})
}

// runTransition starts one transition to target, captured under term. The
// engine runs off-actor so the mailbox stays responsive; its completion
// is posted back as a mailbox task.
func (a *Actor) runTransition(ctx context.Context, target Role, term uint64, onDone func(error)) {
	prevRecipe := a.currentRecipe
	nextRecipe := a.recipeFunc(target, a.deps)
	pending := newFuture()
	a.pendingTransition = pending

	a.publish(events.EventTransitionStarted, fmt.Sprintf("role=%s term=%d", target, term))
	timer := metrics.NewTimer()

	go func() {
		var err error
		func() {
			// A panicking step is converted into an ordinary install failure.
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("transition step panicked: %v", r)
				}
			}()
			err = a.engine.Execute(ctx, a.pc, prevRecipe, nextRecipe)
		}()
		a.enqueue(func() {
			timer.ObserveDurationVec(metrics.TransitionDuration, target.String())
			a.currentRecipe = nextRecipe
			a.completeTransition(ctx, target, term, err, pending)
			if onDone != nil {
				onDone(err)
			}
		})
	}()
}

func (a *Actor) completeTransition(ctx context.Context, target Role, term uint64, err error, pending *future) {
	a.pendingTransition = nil

	stale := term != a.pc.Term
	if stale {
		metrics.StaleCompletionsTotal.Inc()
		a.logger.Debug().Uint64("term", term).Str("role", target.String()).Msg("dropping stale transition completion")
		if err != nil {
			a.onInstallFailure(target, term)
		}
		pending.complete(err)
		return
	}

	a.pc.Role = target

	if err != nil {
		a.pc.ServicesInstalled = false
		metrics.TransitionsTotal.WithLabelValues(target.String(), "failure").Inc()
		a.onInstallFailure(target, term)
		pending.complete(err)
		return
	}

	a.pc.ServicesInstalled = target != RoleInactive
	metrics.TransitionsTotal.WithLabelValues(target.String(), "success").Inc()
	a.publish(events.EventTransitionDone, fmt.Sprintf("role=%s term=%d", target, term))

	if target == RoleLeader || target == RoleFollower {
		a.notifyListeners(ctx, target, term)
	}
	pending.complete(nil)
}

// onInstallFailure marks services as not installed on the health probe,
// and steps down if the failed attempt was for leadership (Raft itself
// still believes this node is leader for this term; the controller's own
// pc.Role may not have been updated).
func (a *Actor) onInstallFailure(target Role, term uint64) {
	a.servicesProbe.SetHealthy(false)
	metrics.InstallFailuresTotal.Inc()
	a.publish(events.EventInstallFailed, fmt.Sprintf("role=%s term=%d", target, term))

	if target == RoleLeader {
		if err := a.raft.StepDown(); err != nil {
			a.logger.Warn().Err(err).Msg("stepDown after install failure returned an error")
		}
		metrics.StepDownsTotal.Inc()
		a.publish(events.EventStepDown, fmt.Sprintf("term=%d", term))
	}
}

// notifyListeners fans the install-success edge out to every registered
// Listener in registration order, off-actor so a slow listener can't
// stall the mailbox. A listener error at the same term it was issued
// under is treated as an install failure; after a superseding role
// change it is logged and dropped.
func (a *Actor) notifyListeners(ctx context.Context, target Role, term uint64) {
	listeners := a.listeners
	logStream := a.pc.LogStorage
	partitionID := a.identity.PartitionID

	go func() {
		g, gctx := errgroup.WithContext(ctx)
		for _, l := range listeners {
			l := l
			g.Go(func() error {
				if target == RoleLeader {
					return l.OnBecomingLeader(gctx, partitionID, term, logStream)
				}
				return l.OnBecomingFollower(gctx, partitionID, term)
			})
		}
		err := g.Wait()

		a.enqueue(func() {
			if term != a.pc.Term {
				a.logger.Debug().Uint64("term", term).Msg("dropping listener result for superseded term")
				return
			}
			if err != nil {
				a.pc.ServicesInstalled = false
				a.onInstallFailure(target, term)
			}
		})
	}()
}

// OnFailure and OnRecovered let the actor itself be registered as a
// health.FailureListener of some other component; they simply forward to
// the single externally registered listener.
func (a *Actor) OnFailure()   { a.forwardHealth(true) }
func (a *Actor) OnRecovered() { a.forwardHealth(false) }

// AddFailureListener registers the single external health subscriber.
// Registering a new one replaces any previous registration.
func (a *Actor) AddFailureListener(l health.FailureListener) {
	a.mu.Lock()
	a.externalFailure = l
	a.mu.Unlock()
}

// PauseProcessing is the explicit pause path: a caller-driven pause
// distinct from the disk-space-driven one.
func (a *Actor) PauseProcessing(ctx context.Context) *future {
	f := newFuture()
	ok := a.enqueue(func() {
		a.pc.ProcessingPaused = true
		if a.pc.StreamProcessor != nil {
			a.pc.StreamProcessor.PauseProcessing()
		}
		a.publish(events.EventProcessingPaused, "")
		f.complete(nil)
	})
	if !ok {
		f.complete(ErrActorClosed)
	}
	return f
}

// ResumeProcessing clears the explicit pause flag, then consults
// shouldProcess() rather than the flag that triggered the call, so the
// pause and disk-space sources compose correctly.
func (a *Actor) ResumeProcessing() {
	a.enqueue(func() {
		a.pc.ProcessingPaused = false
		if a.pc.StreamProcessor != nil && a.pc.shouldProcess() {
			a.pc.StreamProcessor.ResumeProcessing()
			a.publish(events.EventProcessingResumed, "")
		}
	})
}

// OnDiskSpaceNotAvailable pauses processing in response to low disk
// space, composing with any explicit pause already in effect.
func (a *Actor) OnDiskSpaceNotAvailable() {
	a.enqueue(func() {
		a.pc.DiskSpaceAvailable = false
		metrics.DiskSpaceAvailable.WithLabelValues(a.identity.NodeID, strconv.FormatUint(uint64(a.identity.PartitionID), 10)).Set(0)
		if a.pc.StreamProcessor != nil {
			a.pc.StreamProcessor.PauseProcessing()
		}
	})
}

// OnDiskSpaceAvailable marks disk space available again and resumes
// processing if nothing else is still holding it paused.
func (a *Actor) OnDiskSpaceAvailable() {
	a.enqueue(func() {
		a.pc.DiskSpaceAvailable = true
		metrics.DiskSpaceAvailable.WithLabelValues(a.identity.NodeID, strconv.FormatUint(uint64(a.identity.PartitionID), 10)).Set(1)
		if a.pc.StreamProcessor != nil && a.pc.shouldProcess() {
			a.pc.StreamProcessor.ResumeProcessing()
			a.publish(events.EventProcessingResumed, "")
		}
	})
}

// TriggerSnapshot forces an immediate snapshot; silently dropped if
// there is no snapshot director installed (non-leader, or services not
// yet up).
func (a *Actor) TriggerSnapshot() {
	a.enqueue(func() {
		if a.pc.SnapshotDirector == nil {
			return
		}
		if err := a.pc.SnapshotDirector.ForceSnapshot(); err != nil {
			a.logger.Warn().Err(err).Msg("triggered snapshot failed")
			return
		}
		metrics.SnapshotsTriggeredTotal.Inc()
		a.publish(events.EventSnapshotTriggered, "")
	})
}

// GetStreamProcessor reads the currently installed stream processor
// handle (nil if none), dispatched onto the actor so it observes a
// consistent Context.
func (a *Actor) GetStreamProcessor(ctx context.Context) (*streamproc.Processor, error) {
	resultCh := make(chan *streamproc.Processor, 1)
	ok := a.enqueue(func() {
		resultCh <- a.pc.StreamProcessor
	})
	if !ok {
		return nil, ErrActorClosed
	}
	select {
	case p := <-resultCh:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetSnapshotStore is read directly from the Raft handle, safe without
// an actor round trip.
func (a *Actor) GetSnapshotStore() raft.SnapshotStore {
	return a.raft.SnapshotStore()
}

// HealthStatus reports the top-of-tree aggregate health, safe to call
// from any goroutine since health.Supervisor is independently
// synchronized.
func (a *Actor) HealthStatus() health.AggregateStatus {
	return a.supervisor.Status()
}

// Events returns a subscription to the actor's lifecycle event feed.
func (a *Actor) Events() events.Subscriber {
	return a.broker.Subscribe()
}
