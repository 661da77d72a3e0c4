/*
Package observability provides tools for monitoring a running sequencing
engine.

It exposes Prometheus collectors wired through the engine's lifecycle hooks,
and a hook combinator for attaching several hook sets to one session.
*/
package observability
