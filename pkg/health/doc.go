/*
Package health provides two related but independent layers.

Checker, Result, Status and Config are the single-probe layer: something
that knows how to perform one check (HTTPChecker, TCPChecker) and hysteresis
bookkeeping (N consecutive failures before flipping unhealthy, a start
period grace window). This layer is used wherever a concrete probe needs
building, for example checking that an exporter's sink is reachable.

Component, FailureListener and Supervisor are the aggregation layer: any
supervised source of health exposes Status() and Subscribe(), and a
Supervisor aggregates its children with
"unhealthy iff any child unhealthy", itself satisfying Component so
supervisors nest by registration rather than inheritance. ManualProbe
adapts a caller-driven boolean (e.g. "services installed for this role")
into a Component without needing a Checker at all.
*/
package health
