// Package memcache is an asynchronous client for the memcached meta text
// protocol (mg/ms/md/ma/me/mn).
//
// A Connection multiplexes many concurrent requests over a single TCP
// socket using the protocol's guaranteed in-order pipelining: callers never
// block each other, and a single reader goroutine demultiplexes responses
// back to their waiters in submission order.
//
// A Pool (or the simpler PuddlePool) owns a set of Connections, admitting
// new ones under lease pressure up to a soft and hard limit, retiring idle
// connections above a configured minimum, and keeping the rest alive with
// periodic no-op probes.
//
// Client ties a ConnectionPool, an EventSink and an optional CircuitBreaker
// together behind WithConnection and a set of typed single-shot helpers
// (Get, Set, Add, Delete, Increment, Decrement).
package memcache
