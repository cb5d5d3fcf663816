/*
Package raftadapter wraps a *raft.Raft handle with the narrow surface the
partition controller needs: a channel of role/term changes driven by
raft.Observer, stepDown, last-contact staleness as a health.Component, and
the snapshot store the Raft node was built with. It owns no cluster
membership or replication logic; that stays inside hashicorp/raft.
*/
package raftadapter
