/*
Package logstorage keeps one bbolt.DB per node with a bucket per
partition, mapping each partition's applied Raft log index to the stream
processor's own byte offset so a restart can resume processing without
replaying from the beginning. It also exposes Compact, the bounded
cleanup a leader runs on a cadence to drop mappings that fall behind a
retention threshold.
*/
package logstorage
