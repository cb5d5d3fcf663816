/*
Package partition implements the per-node, per-partition controller: a
single-threaded actor that serializes Raft role changes, health signals
and control requests, a transition engine that installs and tears down
the node-local services backing a partition (log storage, stream
processor, snapshot director, exporter), and the health supervisor that
aggregates their status.

Actor is the entry point. Every public method enqueues a task onto its
mailbox rather than touching shared state directly; Context is the state
that mailbox exclusively owns. TransitionEngine and the Step
implementations in steps.go do the actual install/uninstall work, run off
the actor's own goroutine so a slow step can't stall the mailbox, with
their completion posted back as a follow-up task. classifyRoleChange in
role.go is the pure function encoding which raw Raft state transitions
actually warrant a service reinstall.
*/
package partition
