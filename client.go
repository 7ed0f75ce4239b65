package memcache

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// runner is implemented by ConnectionPool backends that own a long-running
// task of their own (Pool does; PuddlePool manages its connections' run
// loops at construction time instead).
type runner interface {
	Run(ctx context.Context) error
}

// Client is a stateless façade over a ConnectionPool: WithConnection leases
// a connection, runs the caller's closure, and guarantees release on every
// exit path. Typed single-shot helpers (Get, Set, Delete, ...) are layered
// on top for callers that don't need to hold a connection across multiple
// operations.
type Client struct {
	pool    ConnectionPool
	sink    EventSink
	breaker CircuitBreaker
	stats   clientStatsCollector

	started atomic.Bool
}

// NewClient builds a Client over pool. sink may be nil (events are
// dropped). breaker may be nil (no circuit breaking).
func NewClient(pool ConnectionPool, sink EventSink, breaker CircuitBreaker) *Client {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Client{pool: pool, sink: sink, breaker: breaker}
}

// Run must be invoked exactly once, and is meant to be launched with
// `go client.Run(ctx)` alongside the pool it wraps. If the underlying pool
// owns a Run loop (Pool does), this drives it; otherwise it simply blocks
// until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("memcache: Client.Run called more than once")
	}
	if r, ok := c.pool.(runner); ok {
		return r.Run(ctx)
	}
	<-ctx.Done()
	return ctx.Err()
}

// WithConnection leases a connection, invokes fn with it, and releases the
// connection on every exit path — including a panic from fn, which is
// re-raised after the lease is marked fatal. Calling WithConnection (or any
// typed helper) before Run is a logic error; it still executes, but emits a
// Warn event.
func (c *Client) WithConnection(ctx context.Context, fn func(*Connection) error) error {
	if !c.started.Load() {
		c.sink.Warn("memcache: lease requested before Client.Run")
	}

	run := func() error {
		lease, err := c.pool.Lease(ctx)
		if err != nil {
			return err
		}
		var callErr error
		func() {
			defer func() {
				if r := recover(); r != nil {
					lease.Release(true)
					panic(r)
				}
			}()
			callErr = fn(lease.Connection())
		}()
		lease.Release(fatal(callErr))
		return callErr
	}

	if c.breaker != nil {
		return c.breaker.Execute(run)
	}
	return run()
}

// Stats returns a snapshot of typed-operation counters.
func (c *Client) Stats() ClientStats { return c.stats.snapshot() }

// PoolStats returns a snapshot of the underlying pool's counters.
func (c *Client) PoolStats() PoolStats { return c.pool.Stats() }

// Get retrieves key.
func (c *Client) Get(ctx context.Context, key string) (Item, error) {
	var item Item
	err := c.WithConnection(ctx, func(conn *Connection) error {
		var err error
		item, err = conn.Get(ctx, key, Flags{})
		return err
	})
	if err != nil {
		c.stats.recordError()
		return Item{}, err
	}
	c.stats.recordGet(item.Found)
	return item, nil
}

// Set stores key unconditionally.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl TimeToLive) error {
	err := c.WithConnection(ctx, func(conn *Connection) error {
		return conn.Set(ctx, key, value, ttl)
	})
	if err != nil {
		c.stats.recordError()
		return err
	}
	c.stats.recordSet()
	return nil
}

// Add stores key only if absent.
func (c *Client) Add(ctx context.Context, key string, value []byte, ttl TimeToLive) error {
	err := c.WithConnection(ctx, func(conn *Connection) error {
		return conn.Add(ctx, key, value, ttl)
	})
	if err != nil {
		c.stats.recordError()
		return err
	}
	c.stats.recordAdd()
	return nil
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.WithConnection(ctx, func(conn *Connection) error {
		return conn.Delete(ctx, key)
	})
	if err != nil {
		c.stats.recordError()
		return err
	}
	c.stats.recordDelete()
	return nil
}

// Increment adds delta to key's stored value and returns the new value.
func (c *Client) Increment(ctx context.Context, key string, delta uint64) (uint64, error) {
	var result ArithmeticResult
	err := c.WithConnection(ctx, func(conn *Connection) error {
		var err error
		result, err = conn.Increment(ctx, key, delta, Flags{ReturnValue: true})
		return err
	})
	if err != nil {
		c.stats.recordError()
		return 0, err
	}
	c.stats.recordIncrement()
	return result.Value, nil
}

// Decrement subtracts delta from key's stored value, floored at 0, and
// returns the new value.
func (c *Client) Decrement(ctx context.Context, key string, delta uint64) (uint64, error) {
	var result ArithmeticResult
	err := c.WithConnection(ctx, func(conn *Connection) error {
		var err error
		result, err = conn.Decrement(ctx, key, delta, Flags{ReturnValue: true})
		return err
	})
	if err != nil {
		c.stats.recordError()
		return 0, err
	}
	c.stats.recordIncrement()
	return result.Value, nil
}
