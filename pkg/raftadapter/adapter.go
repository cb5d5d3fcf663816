// Package raftadapter wraps a *raft.Raft built over raft-boltdb and a
// file snapshot store, reading the current term back out of raft.Stats()
// and the role from raft.State() rather than tracking them independently.
package raftadapter

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/raft"
)

// RoleChange is a single (role, term) observation, either delivered by
// raft's observer machinery or synthesized by Current() on startup.
type RoleChange struct {
	State raft.RaftState
	Term  uint64
}

// Adapter wraps a live *raft.Raft handle for a single partition.
type Adapter struct {
	raft           *raft.Raft
	snapshotStore  raft.SnapshotStore
	mu             sync.Mutex
	observer       *raft.Observer
	obsCh          chan raft.Observation
	changesCh      chan RoleChange
	stopCh         chan struct{}
}

// New wraps an already-bootstrapped raft node. snapshotStore is the same
// store instance passed to raft.NewRaft, kept here so GetSnapshotStore can
// be served without an actor round trip, per the "safe without actor hop"
// contract.
func New(r *raft.Raft, snapshotStore raft.SnapshotStore) *Adapter {
	return &Adapter{raft: r, snapshotStore: snapshotStore}
}

// Current reads the node's present role and term synchronously, used by
// the actor at startup to drive an initial role-change event as if it
// had just arrived.
func (a *Adapter) Current() (RoleChange, error) {
	term, err := a.currentTerm()
	if err != nil {
		return RoleChange{}, err
	}
	return RoleChange{State: a.raft.State(), Term: term}, nil
}

func (a *Adapter) currentTerm() (uint64, error) {
	stats := a.raft.Stats()
	raw, ok := stats["term"]
	if !ok {
		return 0, fmt.Errorf("raftadapter: raft.Stats() did not report a term")
	}
	term, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("raftadapter: parsing term %q: %w", raw, err)
	}
	return term, nil
}

// Subscribe registers a raft.Observer for RaftState transitions and
// returns a channel of RoleChange plus an unsubscribe function. Only one
// subscription is supported at a time, matching the actor registering
// itself as "the" Raft role-change listener at startup.
func (a *Adapter) Subscribe() (<-chan RoleChange, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	obsCh := make(chan raft.Observation, 16)
	observer := raft.NewObserver(obsCh, true, func(o *raft.Observation) bool {
		_, ok := o.Data.(raft.RaftState)
		return ok
	})
	a.raft.RegisterObserver(observer)

	changesCh := make(chan RoleChange, 16)
	stopCh := make(chan struct{})

	a.observer = observer
	a.obsCh = obsCh
	a.changesCh = changesCh
	a.stopCh = stopCh

	go a.pump(obsCh, changesCh, stopCh)

	return changesCh, a.unsubscribe
}

func (a *Adapter) pump(obsCh chan raft.Observation, changesCh chan RoleChange, stopCh chan struct{}) {
	for {
		select {
		case obs := <-obsCh:
			state, ok := obs.Data.(raft.RaftState)
			if !ok {
				continue
			}
			term, err := a.currentTerm()
			if err != nil {
				continue
			}
			select {
			case changesCh <- RoleChange{State: state, Term: term}:
			case <-stopCh:
				return
			}
		case <-stopCh:
			return
		}
	}
}

func (a *Adapter) unsubscribe() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.observer == nil {
		return
	}
	a.raft.DeregisterObserver(a.observer)
	close(a.stopCh)
	a.observer = nil
}

// StepDown asks the node to relinquish leadership, inviting Raft to elect
// a new leader. Safe to call at any time, including when not leader.
func (a *Adapter) StepDown() error {
	return a.raft.StepDown().Error()
}

// LastContact reports when this node last heard from a leader (or, if
// leader, is always recent); used by HealthProbe.
func (a *Adapter) LastContact() time.Time {
	// raft.LastContact is only maintained while following, so a leader
	// reports the current time rather than a stale or zero value.
	if a.raft.State() == raft.Leader {
		return time.Now()
	}
	return a.raft.LastContact()
}

// SnapshotStore returns the snapshot store this Raft node was constructed
// with, read directly without an actor round trip.
func (a *Adapter) SnapshotStore() raft.SnapshotStore {
	return a.snapshotStore
}

// Snapshot forces an immediate snapshot via the underlying Raft node.
func (a *Adapter) Snapshot() error {
	return a.raft.Snapshot().Error()
}
