/*
Package streamproc provides the control surface around the stream
processor sidecar: start, close, and idempotent pause/resume, plus a
ticker-driven drain loop. What record application actually does is out
of scope here; Processor only decides whether it is currently allowed to
drain, in which mode (processing vs. replay-only), and delegates the
drain itself to an injected Source.
*/
package streamproc
