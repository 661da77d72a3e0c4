/*
Package session provides safe concurrent access to persisted sequencing
sessions.

The Manager serializes operations per session with reference-counted local
locks and an optional distributed locker, so hosting layers that receive
concurrent requests for the same session never interleave navigation or
rollup passes.
*/
package session
