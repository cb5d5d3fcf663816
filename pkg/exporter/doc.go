/*
Package exporter provides the leader-only exporter director: a ticker that
pushes applied records to an external Sink, using the same construct,
Start(ctx), Close() sidecar shape as the other per-role services this
module installs. SinkHealth polls a health.Checker (HTTP or TCP) against
the sink's endpoint so sink reachability shows up in the partition's health
tree rather than only surfacing as export errors.
*/
package exporter
