/*
Package dialogue implements design management over a persistence store.

It is the only writer of designs: every mutation loads the design, validates it
against the chronicle rules, and saves it back while holding the design's lock.
The lock is an in-process mutex per design, optionally backed by a distributed
locker so that replicas sharing a store never interleave appends.
*/
package dialogue
