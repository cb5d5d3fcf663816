/*
Package log provides the structured logger shared by every partitiond
component.

It wraps zerolog with a package-level Logger, an Init(Config) that picks
JSON or console output and a severity floor, and a family of With*
constructors that attach identifying fields (component, node, or node
plus partition) to a child logger. Components hold onto the child logger they
were constructed with rather than reaching for the package-level Logger
directly, so a partition actor's logs always carry its node_id and
partition_id.
*/
package log
