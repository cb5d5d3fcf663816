/*
Package snapshot provides the leader-side snapshot director and the
follower-side replication source. hashicorp/raft already owns
transferring and persisting snapshot bytes; this package only decides
when to ask Raft for a new snapshot and records a small on-disk manifest
of when that last happened, using the same bbolt bucket-per-concern
idiom as pkg/logstorage.
*/
package snapshot
