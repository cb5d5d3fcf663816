/*
Package metrics defines and registers the Prometheus collectors exposed by
partitiond: partition role/term/health gauges, transition counters and
duration histograms, and a Timer helper for timing arbitrary operations.
All collectors are registered with the default Prometheus registry at
package init, and Handler returns the promhttp handler a host process
mounts on its operator-facing port.
*/
package metrics
