/*
Package diskspace watches free space on the volume backing a partition's
log storage and snapshot manifest, and calls back when availability
crosses the configured threshold. It follows the construct/Start/Close
ticker-loop shape used by the other sidecars in this module, sampling a
single boolean instead of reconciling broader state.
*/
package diskspace
